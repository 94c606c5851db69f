// Package testbars builds deterministic daily-bar fixtures for tests.
//
// All prices and volumes are integers so rolling sums are exact in float64 and
// "flat" or "rising" comparisons do not depend on summation order.
package testbars

import (
	"time"

	"AShareScreener/internal/model"
)

var start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.Local)

// BaseVolume is the volume of every row outside a breakout ramp.
const BaseVolume = 1000

// Date returns the trade date of row i.
func Date(i int) time.Time { return start.AddDate(0, 0, i) }

// ZigzagClose is the close of row i in a Zigzag series: 100, then +3 on odd
// rows and -1 on even rows. RSI6 is exactly 75 on every defined row.
func ZigzagClose(i int) float64 {
	return float64(100 + 3*((i+1)/2) - i/2)
}

// Zigzag returns n bars that pass all five screening conditions when n >= 242.
func Zigzag(code string, n int) []model.DailyBar {
	bars := make([]model.DailyBar, n)
	for i := range bars {
		bars[i] = bar(code, i, ZigzagClose(i), BaseVolume)
	}
	return Breakout(bars)
}

// Linear returns n bars with close = first + step*i and constant volume.
func Linear(code string, n int, first, step float64) []model.DailyBar {
	bars := make([]model.DailyBar, n)
	for i := range bars {
		bars[i] = bar(code, i, first+step*float64(i), BaseVolume)
	}
	return bars
}

// Breakout rewrites the volume of the last three rows to 2000, 3000, 4000 so
// VOL_MA3 crosses above VOL_MA18 and both rise over the trailing three rows.
func Breakout(bars []model.DailyBar) []model.DailyBar {
	n := len(bars)
	for k := 0; k < 3 && n-3+k >= 0; k++ {
		bars[n-3+k].Volume = float64(2000 + 1000*k)
	}
	return bars
}

// FlatVolume resets every volume to BaseVolume.
func FlatVolume(bars []model.DailyBar) []model.DailyBar {
	for i := range bars {
		bars[i].Volume = BaseVolume
	}
	return bars
}

// SetClose overwrites the close (and OHLC envelope) of row i.
func SetClose(bars []model.DailyBar, i int, close float64) []model.DailyBar {
	v := bars[i].Volume
	bars[i] = bar(bars[i].Code, i, close, v)
	return bars
}

func bar(code string, i int, close, vol float64) model.DailyBar {
	return model.DailyBar{
		Code:      code,
		TradeDate: Date(i),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    vol,
	}
}
