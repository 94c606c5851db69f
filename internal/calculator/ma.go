package calculator

import (
	"errors"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"

	"AShareScreener/internal/model"
)

var errNonPositiveWindow = errors.New("window must be positive")

// RollingMean returns the trailing mean of values over window rows, one entry
// per input row. Entries stay null until the window is full; no partial means
// are ever produced.
func RollingMean(values []float64, window int) ([]null.Float, error) {
	if window <= 0 {
		return nil, errNonPositiveWindow
	}
	out := make([]null.Float, len(values))
	for i := window - 1; i < len(values); i++ {
		out[i] = null.FloatFrom(stat.Mean(values[i-window+1:i+1], nil))
	}
	return out, nil
}

// Lag returns values shifted back by k rows; the first k entries are null.
func Lag(values []float64, k int) []null.Float {
	out := make([]null.Float, len(values))
	for i := k; i < len(values); i++ {
		out[i] = null.FloatFrom(values[i-k])
	}
	return out
}

func extractCloses(bars []model.DailyBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func extractVolumes(bars []model.DailyBar) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	return vols
}
