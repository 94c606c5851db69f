package collector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"AShareScreener/internal/model"
	"AShareScreener/internal/store"
	"AShareScreener/internal/testbars"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "collector.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mockMarket serves n consecutive trade dates for two instruments.
func mockMarket(n int) *MockFetcher {
	m := &MockFetcher{
		Bars:   map[string][]model.DailyBar{},
		Basics: map[string][]model.DailyBasic{},
		Stocks: []model.StockBasic{{Code: "600519.SH", Name: "贵州茅台", Industry: "白酒"}},
	}
	a := testbars.Zigzag("600519.SH", n)
	b := testbars.Linear("000001.SZ", n, 10, 0.01)
	for i := 0; i < n; i++ {
		d := testbars.Date(i)
		key := d.Format(model.TradeDateLayout)
		m.Dates = append(m.Dates, d)
		m.Bars[key] = []model.DailyBar{a[i], b[i]}
		m.Basics[key] = []model.DailyBasic{{Code: "600519.SH", TradeDate: d, TotalMV: 2000000}}
	}
	return m
}

func TestRefresh_InitialAndIncremental(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	m := mockMarket(30)

	c := NewCollector(m, st, 400, nil)
	c.Now = func() time.Time { return testbars.Date(19).Add(18 * time.Hour) }

	var last [2]int
	sum, err := c.Refresh(ctx, func(done, total int) { last = [2]int{done, total} })
	if err != nil {
		t.Fatal(err)
	}
	if sum.Dates != 20 || sum.BarsStored != 40 {
		t.Errorf("unexpected first summary %+v", sum)
	}
	if last != [2]int{20, 20} {
		t.Errorf("unexpected final progress %v", last)
	}

	// five more days pass
	c.Now = func() time.Time { return testbars.Date(24).Add(18 * time.Hour) }
	sum, err = c.Refresh(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Dates != 5 || sum.BarsStored != 10 {
		t.Errorf("unexpected incremental summary %+v", sum)
	}

	// nothing new on the same day
	sum, err = c.Refresh(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Dates != 0 {
		t.Errorf("expected no dates on an up-to-date store, got %d", sum.Dates)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.RowCount != 50 || stats.StockCount != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
	codes, err := st.CodesByMarketCap(ctx, 200000, 3000000)
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 1 || codes[0] != "600519.SH" {
		t.Errorf("unexpected market cap codes %v", codes)
	}
}

func TestRefresh_FailedDateIsSkipped(t *testing.T) {
	ctx := context.Background()
	m := mockMarket(5)
	m.Fail = map[string]error{testbars.Date(2).Format(model.TradeDateLayout): errors.New("timeout")}

	c := NewCollector(m, openStore(t), 400, nil)
	c.Now = func() time.Time { return testbars.Date(4) }
	sum, err := c.Refresh(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.FailedDates) != 1 || sum.BarsStored != 8 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestRefreshReference(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	c := NewCollector(mockMarket(1), st, 400, nil)
	n, err := c.RefreshReference(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 instrument, got %d", n)
	}
	basics, err := st.LoadBasics(ctx, []string{"600519.SH"})
	if err != nil {
		t.Fatal(err)
	}
	if basics["600519.SH"].Name != "贵州茅台" {
		t.Errorf("unexpected reference row %+v", basics["600519.SH"])
	}
}
