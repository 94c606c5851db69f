package collector

import (
	"context"
	"time"

	"AShareScreener/internal/model"
)

// Fetcher defines the interface for fetching market data from a vendor.
type Fetcher interface {
	// TradeDates returns open exchange days in [start, end], ascending.
	TradeDates(ctx context.Context, start, end time.Time) ([]time.Time, error)
	// DailyBars returns every instrument's bar for one trade date.
	DailyBars(ctx context.Context, tradeDate time.Time) ([]model.DailyBar, error)
	// DailyBasics returns every instrument's valuation row for one trade date.
	DailyBasics(ctx context.Context, tradeDate time.Time) ([]model.DailyBasic, error)
	// StockBasics returns the listed-instrument reference table.
	StockBasics(ctx context.Context) ([]model.StockBasic, error)
	Name() string
}
