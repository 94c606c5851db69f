package screener

import (
	"context"

	"AShareScreener/internal/model"
)

// HistorySource returns the ascending bar series of each requested code in a
// single batched read. Codes without history are absent from the map.
type HistorySource interface {
	LoadBars(ctx context.Context, codes []string) (map[string][]model.DailyBar, error)
}

// ReferenceSource returns static descriptors keyed by code.
type ReferenceSource interface {
	LoadBasics(ctx context.Context, codes []string) (map[string]model.StockBasic, error)
}

// CapSource lists codes whose latest market value lies in a range (万元).
type CapSource interface {
	CodesByMarketCap(ctx context.Context, minMV, maxMV float64) ([]string, error)
}

// Progress is emitted after each instrument completes.
type Progress struct {
	Done  int
	Total int
}

// Fraction returns Done/Total in [0,1]; an empty run reports 1.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Done) / float64(p.Total)
}

// ProgressFunc observes run progress. Calls are serialised and Done never
// decreases.
type ProgressFunc func(Progress)
