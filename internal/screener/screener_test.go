package screener

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"AShareScreener/internal/metrics"
	"AShareScreener/internal/model"
	"AShareScreener/internal/testbars"
)

type mapHistory struct {
	mu      sync.Mutex
	bars    map[string][]model.DailyBar
	err     error
	queried [][]string
}

func (m *mapHistory) LoadBars(_ context.Context, codes []string) (map[string][]model.DailyBar, error) {
	m.mu.Lock()
	m.queried = append(m.queried, codes)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string][]model.DailyBar)
	for _, c := range codes {
		if b, ok := m.bars[c]; ok {
			out[c] = b
		}
	}
	return out, nil
}

type mapReference struct {
	basics map[string]model.StockBasic
	err    error
}

func (m *mapReference) LoadBasics(_ context.Context, _ []string) (map[string]model.StockBasic, error) {
	return m.basics, m.err
}

func fixtureHistory() *mapHistory {
	return &mapHistory{bars: map[string][]model.DailyBar{
		"600519.SH": testbars.SetClose(testbars.Zigzag("600519.SH", 300), 299, testbars.ZigzagClose(59)),
		"000001.SZ": testbars.Zigzag("000001.SZ", 300),
		"300750.SZ": testbars.Zigzag("300750.SZ", 100),
	}}
}

func byCode(rows []model.Row) map[string]model.Row {
	out := make(map[string]model.Row, len(rows))
	for _, r := range rows {
		out[r.Code] = r
	}
	return out
}

func TestScreen_Verdicts(t *testing.T) {
	ref := &mapReference{basics: map[string]model.StockBasic{
		"000001.SZ": {Code: "000001.SZ", Name: "平安银行", Industry: "银行", TotalMV: 2000000},
		"600519.SH": {Code: "600519.SH", Name: "贵州茅台"},
	}}
	s := New(fixtureHistory(), ref, 2, nil)

	res, err := s.Screen(context.Background(), []string{"600519.SH", "000001.SZ", "300750.SZ", "688981.SH"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if !res.Enriched {
		t.Error("expected enriched result")
	}
	if len(res.Rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(res.Rows))
	}

	rows := byCode(res.Rows)
	tests := []struct {
		code string
		want model.Verdict
	}{
		{"600519.SH", model.VerdictCond1Fail},
		{"000001.SZ", model.VerdictPass},
		{"300750.SZ", model.VerdictInsufficientData},
		{"688981.SH", model.VerdictInsufficientData},
	}
	for _, tt := range tests {
		if got := rows[tt.code].Verdict; got != tt.want {
			t.Errorf("%s: verdict %s, want %s", tt.code, got, tt.want)
		}
	}

	missing := rows["688981.SH"]
	if missing.Snapshot.Close.Valid || missing.Snapshot.MA240.Valid || missing.Snapshot.RSI6.Valid {
		t.Error("instrument without history must have null indicators")
	}

	pass := rows["000001.SZ"]
	if pass.Snapshot.RSI6.Float64 != 75 {
		t.Errorf("expected RSI6 75, got %v", pass.Snapshot.RSI6)
	}
	if pass.Name != "平安银行" || pass.TotalMV != 2000000 {
		t.Errorf("unexpected enrichment %+v", pass)
	}
	if rows["600519.SH"].Industry != model.UnknownText {
		t.Errorf("missing industry should be %q, got %q", model.UnknownText, rows["600519.SH"].Industry)
	}
	if rows["688981.SH"].Name != model.UnknownText || rows["688981.SH"].TotalMV != 0 {
		t.Errorf("unmatched reference should default, got %+v", rows["688981.SH"])
	}

	passed := res.Passed()
	if len(passed) != 1 || passed[0].Code != "000001.SZ" {
		t.Errorf("unexpected passed subset %+v", passed)
	}
}

func TestScreen_DedupesAndBatchesHistory(t *testing.T) {
	h := fixtureHistory()
	s := New(h, nil, 0, nil)
	res, err := s.Screen(context.Background(), []string{"000001.SZ", "000001.SZ", " ", "600519.SH", "000001.SZ"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows after dedupe, got %d", len(res.Rows))
	}
	if len(h.queried) != 1 {
		t.Fatalf("expected one batched history read, got %d", len(h.queried))
	}
	if res.Enriched {
		t.Error("no reference source: result must not be enriched")
	}
}

func TestScreen_OrderIndependent(t *testing.T) {
	s := New(fixtureHistory(), nil, 3, nil)
	a, err := s.Screen(context.Background(), []string{"600519.SH", "000001.SZ", "300750.SZ"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Screen(context.Background(), []string{"300750.SZ", "600519.SH", "000001.SZ"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ra, rb := byCode(a.Rows), byCode(b.Rows)
	if len(ra) != len(rb) {
		t.Fatalf("row count differs: %d vs %d", len(ra), len(rb))
	}
	for code, row := range ra {
		if rb[code] != row {
			t.Errorf("%s differs between runs: %+v vs %+v", code, row, rb[code])
		}
	}
}

func TestScreen_HistoryFailureIsFatal(t *testing.T) {
	h := &mapHistory{err: errors.New("database is locked")}
	if _, err := New(h, nil, 1, nil).Screen(context.Background(), []string{"000001.SZ"}, nil); err == nil {
		t.Fatal("expected error when the batched history read fails")
	}
}

func TestScreen_ReferenceFailureDegrades(t *testing.T) {
	ref := &mapReference{err: errors.New("no such table: stock_basic")}
	res, err := New(fixtureHistory(), ref, 1, nil).Screen(context.Background(), []string{"000001.SZ"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Enriched {
		t.Error("result should be un-enriched")
	}
	if res.Rows[0].Verdict != model.VerdictPass {
		t.Errorf("verdict should survive a join failure, got %s", res.Rows[0].Verdict)
	}
}

func TestScreen_PerInstrumentFailureIsolated(t *testing.T) {
	h := fixtureHistory()
	bad := testbars.Zigzag("002594.SZ", 300)
	bad[10], bad[11] = bad[11], bad[10]
	h.bars["002594.SZ"] = bad

	res, err := New(h, nil, 2, nil).Screen(context.Background(), []string{"002594.SZ", "000001.SZ"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rows := byCode(res.Rows)
	if rows["002594.SZ"].Verdict != model.VerdictError || rows["002594.SZ"].Diagnostic == "" {
		t.Errorf("expected ERROR with diagnostic, got %+v", rows["002594.SZ"])
	}
	if rows["000001.SZ"].Verdict != model.VerdictPass {
		t.Errorf("healthy instrument affected: %s", rows["000001.SZ"].Verdict)
	}
}

func TestScreen_PanicIsolated(t *testing.T) {
	orig := evaluate
	evaluate = func(code string, bars []model.DailyBar) model.Row {
		if code == "600519.SH" {
			panic("corrupt series")
		}
		return orig(code, bars)
	}
	defer func() { evaluate = orig }()

	res, err := New(fixtureHistory(), nil, 2, nil).Screen(context.Background(), []string{"600519.SH", "000001.SZ"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rows := byCode(res.Rows)
	if rows["600519.SH"].Verdict != model.VerdictError {
		t.Errorf("expected ERROR for panicking instrument, got %s", rows["600519.SH"].Verdict)
	}
	if rows["000001.SZ"].Verdict != model.VerdictPass {
		t.Errorf("expected PASS, got %s", rows["000001.SZ"].Verdict)
	}
}

func TestScreen_ProgressMonotonic(t *testing.T) {
	h := &mapHistory{bars: map[string][]model.DailyBar{}}
	var codes []string
	for i := 0; i < 40; i++ {
		code := testbars.Date(i).Format("0102") + ".SZ"
		codes = append(codes, code)
		h.bars[code] = testbars.Zigzag(code, 250)
	}

	var seen []Progress
	res, err := New(h, nil, 8, nil).Screen(context.Background(), codes, func(p Progress) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != len(res.Rows) {
		t.Fatalf("expected %d progress events, got %d", len(res.Rows), len(seen))
	}
	if !sort.SliceIsSorted(seen, func(i, j int) bool { return seen[i].Done < seen[j].Done }) {
		t.Error("progress is not monotonic")
	}
	if last := seen[len(seen)-1]; last.Fraction() != 1 {
		t.Errorf("final fraction = %v, want 1", last.Fraction())
	}
}

func TestScreen_EmptyWatchlist(t *testing.T) {
	var got []Progress
	res, err := New(fixtureHistory(), nil, 1, nil).Screen(context.Background(), nil, func(p Progress) { got = append(got, p) })
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(res.Rows))
	}
	if len(got) != 1 || got[0].Fraction() != 1 {
		t.Errorf("expected one completion event, got %+v", got)
	}
}

func TestScreen_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(fixtureHistory(), nil, 1, nil).Screen(ctx, []string{"000001.SZ"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScreen_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	if _, err := New(fixtureHistory(), nil, 2, m).Screen(context.Background(), []string{"600519.SH", "000001.SZ", "300750.SZ"}, nil); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("INSUFFICIENT_DATA")); got != 1 {
		t.Errorf("INSUFFICIENT_DATA count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PassedLast); got != 1 {
		t.Errorf("passed gauge = %v, want 1", got)
	}
}

type fakeCaps struct {
	codes []string
	err   error
}

func (f fakeCaps) CodesByMarketCap(_ context.Context, _, _ float64) ([]string, error) {
	return f.codes, f.err
}

func TestUniverse(t *testing.T) {
	ctx := context.Background()
	watch := []string{"600519.SH", "000001.SZ"}

	got := Universe(ctx, watch, fakeCaps{codes: []string{"000001.SZ", "300750.SZ"}}, 200000, 3000000)
	want := []string{"600519.SH", "000001.SZ", "300750.SZ"}
	if len(got) != len(want) {
		t.Fatalf("Universe() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Universe()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if got := Universe(ctx, watch, fakeCaps{err: errors.New("boom")}, 0, 1); len(got) != 2 {
		t.Errorf("failed cap lookup should keep watchlist, got %v", got)
	}
	if got := Universe(ctx, watch, nil, 0, 1); len(got) != 2 {
		t.Errorf("nil cap source should keep watchlist, got %v", got)
	}
}
