package calculator

import (
	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"
)

// RollingRSI computes RSI over period rows using simple (not Wilder) rolling
// means of gains and losses. Row i is defined once it has period price changes
// behind it. A window with zero average loss yields null rather than 100.
func RollingRSI(closes []float64, period int) ([]null.Float, error) {
	if period <= 0 {
		return nil, errNonPositiveWindow
	}
	n := len(closes)
	out := make([]null.Float, n)
	if n < 2 {
		return out, nil
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	for i := period; i < n; i++ {
		avgLoss := stat.Mean(losses[i-period+1:i+1], nil)
		if avgLoss == 0 {
			continue
		}
		avgGain := stat.Mean(gains[i-period+1:i+1], nil)
		rs := avgGain / avgLoss
		out[i] = null.FloatFrom(100.0 - 100.0/(1.0+rs))
	}
	return out, nil
}
