package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AShareScreener/internal/logger"
	"AShareScreener/internal/metrics"
	"AShareScreener/internal/model"
)

// MockFetcher serves fixed in-memory data for development and testing.
type MockFetcher struct {
	mu     sync.Mutex
	Dates  []time.Time
	Bars   map[string][]model.DailyBar // keyed by trade date YYYYMMDD
	Basics map[string][]model.DailyBasic
	Stocks []model.StockBasic
	Fail   map[string]error // keyed by trade date, returned by DailyBars
	Calls  []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) record(call string) {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	m.mu.Unlock()
}

func (m *MockFetcher) TradeDates(_ context.Context, start, end time.Time) ([]time.Time, error) {
	m.record("trade_cal")
	var out []time.Time
	for _, d := range m.Dates {
		if !d.Before(start) && !d.After(end) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockFetcher) DailyBars(_ context.Context, tradeDate time.Time) ([]model.DailyBar, error) {
	key := tradeDate.Format(model.TradeDateLayout)
	m.record("daily " + key)
	if err := m.Fail[key]; err != nil {
		return nil, err
	}
	return m.Bars[key], nil
}

func (m *MockFetcher) DailyBasics(_ context.Context, tradeDate time.Time) ([]model.DailyBasic, error) {
	key := tradeDate.Format(model.TradeDateLayout)
	m.record("daily_basic " + key)
	return m.Basics[key], nil
}

func (m *MockFetcher) StockBasics(_ context.Context) ([]model.StockBasic, error) {
	m.record("stock_basic")
	return m.Stocks, nil
}

// Sink is the storage the collector writes into.
type Sink interface {
	SaveBars(ctx context.Context, bars []model.DailyBar) (int64, error)
	SaveDailyBasics(ctx context.Context, basics []model.DailyBasic) error
	SaveStockBasics(ctx context.Context, basics []model.StockBasic) error
	LatestTradeDate(ctx context.Context) (time.Time, bool, error)
}

// RefreshSummary describes one incremental refresh.
type RefreshSummary struct {
	Dates       int
	BarsStored  int64
	FailedDates []string
}

// Collector keeps the local store in step with the vendor.
type Collector struct {
	Fetcher     Fetcher
	Sink        Sink
	HistoryDays int
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, sink Sink, historyDays int, m *metrics.Metrics) *Collector {
	return &Collector{Fetcher: fetcher, Sink: sink, HistoryDays: historyDays, Metrics: m, Now: time.Now}
}

// Refresh fetches every open trade date after the latest stored one (or the
// last HistoryDays calendar days on an empty store). A date that fails is
// logged and skipped; the next refresh does not retry it automatically once
// later dates are stored. progress receives (done, total) after each date.
func (c *Collector) Refresh(ctx context.Context, progress func(done, total int)) (*RefreshSummary, error) {
	now := c.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	latest, ok, err := c.Sink.LatestTradeDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest trade date: %w", err)
	}
	start := today.AddDate(0, 0, -c.HistoryDays)
	if ok {
		start = latest.AddDate(0, 0, 1)
	}
	summary := &RefreshSummary{}
	if start.After(today) {
		logger.Infof("store is up to date (%s)", latest.Format(model.TradeDateLayout))
		return summary, nil
	}

	dates, err := c.Fetcher.TradeDates(ctx, start, today)
	if err != nil {
		return nil, fmt.Errorf("fetch trade calendar: %w", err)
	}
	logger.Infof("refreshing %d trade dates from %s via %s", len(dates), start.Format(model.TradeDateLayout), c.Fetcher.Name())

	for i, d := range dates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		key := d.Format(model.TradeDateLayout)
		n, err := c.refreshDate(ctx, d)
		if err != nil {
			logger.Warnf("refresh %s: %v", key, err)
			summary.FailedDates = append(summary.FailedDates, key)
		} else {
			summary.BarsStored += n
			c.Metrics.ObserveBarsStored(n)
		}
		summary.Dates++
		if progress != nil {
			progress(i+1, len(dates))
		}
	}

	logger.Infof("refresh done: %d dates, %d bars stored, %d failed", summary.Dates, summary.BarsStored, len(summary.FailedDates))
	return summary, nil
}

func (c *Collector) refreshDate(ctx context.Context, d time.Time) (int64, error) {
	bars, err := c.Fetcher.DailyBars(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("fetch daily bars: %w", err)
	}
	n, err := c.Sink.SaveBars(ctx, bars)
	if err != nil {
		return 0, fmt.Errorf("save daily bars: %w", err)
	}

	basics, err := c.Fetcher.DailyBasics(ctx, d)
	if err != nil {
		// bars are already stored; valuation only feeds the market cap filter
		logger.Warnf("fetch daily basics %s: %v", d.Format(model.TradeDateLayout), err)
		return n, nil
	}
	if err := c.Sink.SaveDailyBasics(ctx, basics); err != nil {
		return n, fmt.Errorf("save daily basics: %w", err)
	}
	return n, nil
}

// RefreshReference replaces the stock_basic reference table.
func (c *Collector) RefreshReference(ctx context.Context) (int, error) {
	basics, err := c.Fetcher.StockBasics(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch stock basics: %w", err)
	}
	if err := c.Sink.SaveStockBasics(ctx, basics); err != nil {
		return 0, fmt.Errorf("save stock basics: %w", err)
	}
	logger.Infof("reference refreshed: %d instruments", len(basics))
	return len(basics), nil
}
