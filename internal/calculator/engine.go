package calculator

import (
	"errors"
	"fmt"

	"AShareScreener/internal/model"
)

// ErrInsufficientHistory means the series is too short to evaluate. Callers
// treat it as a normal "cannot evaluate" outcome.
var ErrInsufficientHistory = errors.New("insufficient history")

// Compute derives every screening indicator for one instrument's bars, which
// must be ordered by strictly ascending trade date. The input is not modified.
func Compute(bars []model.DailyBar) (*model.IndicatorSeries, error) {
	if len(bars) < model.MinHistory {
		return nil, fmt.Errorf("%w: %d bars, need %d", ErrInsufficientHistory, len(bars), model.MinHistory)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].TradeDate.After(bars[i-1].TradeDate) {
			return nil, fmt.Errorf("bars out of order at row %d (%s after %s)",
				i, bars[i].TradeDate.Format(model.TradeDateLayout), bars[i-1].TradeDate.Format(model.TradeDateLayout))
		}
	}

	closes := extractCloses(bars)
	vols := extractVolumes(bars)

	s := &model.IndicatorSeries{
		Code:        bars[0].Code,
		Bars:        append([]model.DailyBar(nil), bars...),
		Close240Ago: Lag(closes, model.LongestWindow),
	}

	var err error
	if s.MA20, err = RollingMean(closes, 20); err != nil {
		return nil, fmt.Errorf("ma20: %w", err)
	}
	if s.MA60, err = RollingMean(closes, 60); err != nil {
		return nil, fmt.Errorf("ma60: %w", err)
	}
	if s.MA240, err = RollingMean(closes, model.LongestWindow); err != nil {
		return nil, fmt.Errorf("ma240: %w", err)
	}
	if s.RSI6, err = RollingRSI(closes, 6); err != nil {
		return nil, fmt.Errorf("rsi6: %w", err)
	}
	if s.RSI13, err = RollingRSI(closes, 13); err != nil {
		return nil, fmt.Errorf("rsi13: %w", err)
	}
	if s.VolMA3, err = RollingMean(vols, 3); err != nil {
		return nil, fmt.Errorf("vol_ma3: %w", err)
	}
	if s.VolMA18, err = RollingMean(vols, 18); err != nil {
		return nil, fmt.Errorf("vol_ma18: %w", err)
	}
	return s, nil
}
