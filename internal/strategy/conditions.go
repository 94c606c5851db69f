package strategy

import (
	"github.com/guregu/null/v6"

	"AShareScreener/internal/model"
)

// MomentumFloorRatio is the minimum latest close relative to the close 240 rows back.
const MomentumFloorRatio = 1.10

// RSI thresholds for momentum confirmation.
const (
	RSI13Floor = 50.0
	RSI6Floor  = 70.0
)

// breakoutWindow is the number of trailing rows inspected by the volume gate.
const breakoutWindow = 3

// greater reports a > b; an undefined side never compares greater.
func greater(a, b null.Float) bool {
	return a.Valid && b.Valid && a.Float64 > b.Float64
}

func rising(col []null.Float, i int) bool {
	return greater(col[i], col[i-1])
}

// longTermTrendUp: MA240 rose on the latest row.
func longTermTrendUp(s *model.IndicatorSeries, last int) bool {
	return rising(s.MA240, last)
}

// momentumFloor: latest close is more than 10% above the close 240 rows back.
func momentumFloor(s *model.IndicatorSeries, last int) bool {
	ago := s.Close240Ago[last]
	if !ago.Valid {
		return false
	}
	return s.Bars[last].Close > ago.Float64*MomentumFloorRatio
}

// mediumTermTrendUp: MA60 or MA20 rose on the latest row.
func mediumTermTrendUp(s *model.IndicatorSeries, last int) bool {
	return rising(s.MA60, last) || rising(s.MA20, last)
}

// volumeBreakout needs at least one VOL_MA3 cross above VOL_MA18 inside the
// trailing window, and both averages strictly increasing across that window.
func volumeBreakout(s *model.IndicatorSeries, last int) bool {
	first := last - breakoutWindow + 1

	crossed := false
	for i := first; i <= last; i++ {
		above := greater(s.VolMA3[i], s.VolMA18[i])
		wasBelow := s.VolMA3[i-1].Valid && s.VolMA18[i-1].Valid &&
			s.VolMA3[i-1].Float64 <= s.VolMA18[i-1].Float64
		if above && wasBelow {
			crossed = true
			break
		}
	}
	if !crossed {
		return false
	}

	for i := first + 1; i <= last; i++ {
		if !rising(s.VolMA3, i) || !rising(s.VolMA18, i) {
			return false
		}
	}
	return true
}

// momentumConfirmed: RSI13 above 50 and RSI6 above 70 on the latest row.
func momentumConfirmed(s *model.IndicatorSeries, last int) bool {
	rsi13, rsi6 := s.RSI13[last], s.RSI6[last]
	return rsi13.Valid && rsi6.Valid && rsi13.Float64 > RSI13Floor && rsi6.Float64 > RSI6Floor
}
