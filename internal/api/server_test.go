package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"AShareScreener/internal/metrics"
	"AShareScreener/internal/model"
	"AShareScreener/internal/recorder"
	"AShareScreener/internal/scheduler"
	"AShareScreener/internal/store"
)

type fakeRuns struct {
	last     *model.ScreeningResult
	busy     bool
	triggers int
}

func (f *fakeRuns) Last() (*model.ScreeningResult, string) { return f.last, "data/results/r.csv" }
func (f *fakeRuns) Running() bool                          { return f.busy }
func (f *fakeRuns) TriggerScreen() error {
	if f.busy {
		return scheduler.ErrBusy
	}
	f.triggers++
	f.busy = true
	return nil
}

type fakeStats struct{ err error }

func (f fakeStats) Stats(_ context.Context) (*store.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &store.Stats{MinDate: "20230101", MaxDate: "20240308", StockCount: 2, RowCount: 600}, nil
}

type fakeRecorder struct {
	recorder.NoopRecorder
	limit int
}

func (f *fakeRecorder) RecentRuns(limit int) ([]recorder.RunSummary, error) {
	f.limit = limit
	return []recorder.RunSummary{{RunID: "a", Instruments: 3, Passed: 1}}, nil
}

func newTestServer(runs *fakeRuns, stats fakeStats) (*Server, *fakeRecorder, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveVerdict(model.VerdictPass)
	rec := &fakeRecorder{}
	return &Server{Runs: runs, Stats: stats, Recorder: rec, Gatherer: reg}, rec, reg
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func sampleResult() *model.ScreeningResult {
	return &model.ScreeningResult{RunID: "run-1", Enriched: true, Rows: []model.Row{
		{Code: "600000.SH", Verdict: model.VerdictPass},
		{Code: "000001.SZ", Verdict: model.VerdictCond3Fail},
	}}
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(&fakeRuns{}, fakeStats{})
	w := do(t, s.Router(), http.MethodGet, "/healthz")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected healthz: %d %s", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(&fakeRuns{}, fakeStats{})
	w := do(t, s.Router(), http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "verdicts_total") {
		t.Errorf("metrics output missing verdict counter:\n%s", w.Body.String())
	}
}

func TestLatest(t *testing.T) {
	s, _, _ := newTestServer(&fakeRuns{}, fakeStats{})
	if w := do(t, s.Router(), http.MethodGet, "/api/v1/results/latest"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any run, got %d", w.Code)
	}

	s.Runs = &fakeRuns{last: sampleResult()}
	var body struct {
		Data struct {
			RunID      string      `json:"run_id"`
			Rows       []model.Row `json:"rows"`
			ExportPath string      `json:"export_path"`
		} `json:"data"`
	}

	w := do(t, s.Router(), http.MethodGet, "/api/v1/results/latest")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.RunID != "run-1" || len(body.Data.Rows) != 2 || body.Data.ExportPath == "" {
		t.Errorf("unexpected body: %+v", body.Data)
	}

	w = do(t, s.Router(), http.MethodGet, "/api/v1/results/latest?passed=true")
	body.Data.Rows = nil
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Rows) != 1 || body.Data.Rows[0].Code != "600000.SH" {
		t.Errorf("passed filter returned %+v", body.Data.Rows)
	}
}

func TestLatest_RowColumns(t *testing.T) {
	s, _, _ := newTestServer(&fakeRuns{last: sampleResult()}, fakeStats{})
	w := do(t, s.Router(), http.MethodGet, "/api/v1/results/latest")

	var body struct {
		Data struct {
			Rows []map[string]interface{} `json:"rows"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(body.Data.Rows))
	}
	tests := []struct {
		idx    int
		passed bool
		reason string
	}{
		{0, true, "PASS"},
		{1, false, "COND3_FAIL"},
	}
	for _, tt := range tests {
		row := body.Data.Rows[tt.idx]
		if row["passed"] != tt.passed {
			t.Errorf("row %d: passed = %v, want %v", tt.idx, row["passed"], tt.passed)
		}
		if row["reason"] != tt.reason {
			t.Errorf("row %d: reason = %v, want %s", tt.idx, row["reason"], tt.reason)
		}
		for _, col := range []string{"ts_code", "close", "ma20", "ma60", "ma240", "rsi6", "rsi13", "vol_ma3", "vol_ma18"} {
			if _, ok := row[col]; !ok {
				t.Errorf("row %d: missing column %s", tt.idx, col)
			}
		}
	}
}

func TestTriggerScreening(t *testing.T) {
	runs := &fakeRuns{}
	s, _, _ := newTestServer(runs, fakeStats{})
	h := s.Router()

	if w := do(t, h, http.MethodPost, "/api/v1/screenings"); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/screenings"); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", w.Code)
	}
	if runs.triggers != 1 {
		t.Errorf("expected one trigger, got %d", runs.triggers)
	}
}

func TestStats(t *testing.T) {
	s, _, _ := newTestServer(&fakeRuns{}, fakeStats{})
	w := do(t, s.Router(), http.MethodGet, "/api/v1/stats")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "20240308") {
		t.Fatalf("unexpected stats: %d %s", w.Code, w.Body.String())
	}

	s.Stats = fakeStats{err: errors.New("disk")}
	if w := do(t, s.Router(), http.MethodGet, "/api/v1/stats"); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRuns(t *testing.T) {
	s, rec, _ := newTestServer(&fakeRuns{}, fakeStats{})
	h := s.Router()

	w := do(t, h, http.MethodGet, "/api/v1/runs?limit=5")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"run_id":"a"`) {
		t.Fatalf("unexpected runs: %d %s", w.Code, w.Body.String())
	}
	if rec.limit != 5 {
		t.Errorf("limit = %d, want 5", rec.limit)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/runs?limit=x"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
