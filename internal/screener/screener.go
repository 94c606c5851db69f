package screener

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"AShareScreener/internal/calculator"
	"AShareScreener/internal/logger"
	"AShareScreener/internal/metrics"
	"AShareScreener/internal/model"
	"AShareScreener/internal/strategy"
)

// Screener fans indicator computation and rule evaluation out over a watchlist.
type Screener struct {
	History   HistorySource
	Reference ReferenceSource // optional
	Workers   int             // <= 0 means runtime.NumCPU()
	Metrics   *metrics.Metrics
}

// New creates a Screener.
func New(history HistorySource, reference ReferenceSource, workers int, m *metrics.Metrics) *Screener {
	return &Screener{History: history, Reference: reference, Workers: workers, Metrics: m}
}

func (s *Screener) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

// Screen evaluates every distinct code once. Only a failed history read or a
// canceled context fails the run; per-instrument problems become verdicts.
func (s *Screener) Screen(ctx context.Context, codes []string, progress ProgressFunc) (*model.ScreeningResult, error) {
	started := time.Now()
	codes = Dedupe(codes)
	result := &model.ScreeningResult{RunID: uuid.NewString(), StartedAt: started}
	logger.Infof("screening run %s: %d instruments, %d workers", result.RunID, len(codes), s.workers())

	history, err := s.History.LoadBars(ctx, codes)
	if err != nil {
		s.Metrics.ObserveRun("error", started, 0, 0)
		return nil, fmt.Errorf("load history: %w", err)
	}

	rows := make([]model.Row, len(codes))
	tracker := &progressTracker{total: len(codes), fn: progress}

	var g errgroup.Group
	g.SetLimit(s.workers())
	for i, code := range codes {
		// in-flight units finish; nothing new is scheduled after cancel
		if ctx.Err() != nil {
			break
		}
		bars := history[code]
		g.Go(func() error {
			rows[i] = safeEvaluate(code, bars)
			s.Metrics.ObserveVerdict(rows[i].Verdict)
			tracker.done()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.Metrics.ObserveRun("canceled", started, 0, 0)
		return nil, fmt.Errorf("screening run %s canceled: %w", result.RunID, err)
	}
	if len(codes) == 0 {
		tracker.emit()
	}

	result.Rows = rows
	s.enrich(ctx, result, codes)
	result.FinishedAt = time.Now()

	passed := len(result.Passed())
	s.Metrics.ObserveRun("ok", started, len(rows), passed)
	logger.Infof("screening run %s done in %s: %d passed of %d",
		result.RunID, result.FinishedAt.Sub(started).Round(time.Millisecond), passed, len(rows))
	return result, nil
}

// enrich left-joins reference data. A failed read leaves the result un-enriched.
func (s *Screener) enrich(ctx context.Context, result *model.ScreeningResult, codes []string) {
	if s.Reference == nil {
		return
	}
	basics, err := s.Reference.LoadBasics(ctx, codes)
	if err != nil {
		logger.Warnf("reference join failed, returning un-enriched result: %v", err)
		return
	}
	for i := range result.Rows {
		row := &result.Rows[i]
		b := basics[row.Code]
		row.Name = textOrUnknown(b.Name)
		row.Industry = textOrUnknown(b.Industry)
		row.TotalMV = b.TotalMV
	}
	result.Enriched = true
}

func textOrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.UnknownText
	}
	return s
}

// evaluate is swapped in tests to exercise panic isolation.
var evaluate = evaluateOne

// safeEvaluate never panics; any failure is folded into the returned row.
func safeEvaluate(code string, bars []model.DailyBar) (row model.Row) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("evaluate %s panicked: %v", code, r)
			row = model.Row{Code: code, Verdict: model.VerdictError, Diagnostic: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return evaluate(code, bars)
}

func evaluateOne(code string, bars []model.DailyBar) model.Row {
	row := model.Row{Code: code}
	if len(bars) < model.MinHistory {
		row.Verdict = model.VerdictInsufficientData
		return row
	}

	series, err := calculator.Compute(bars)
	if errors.Is(err, calculator.ErrInsufficientHistory) {
		row.Verdict = model.VerdictInsufficientData
		return row
	}
	if err != nil {
		logger.Warnf("evaluate %s: %v", code, err)
		row.Verdict = model.VerdictError
		row.Diagnostic = err.Error()
		return row
	}

	row.Verdict = strategy.Evaluate(series)
	row.Snapshot = series.Latest().Rounded()
	return row
}

// Dedupe drops empty and repeated codes, keeping first-seen order.
func Dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

type progressTracker struct {
	mu    sync.Mutex
	n     int
	total int
	fn    ProgressFunc
}

func (p *progressTracker) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	if p.fn != nil {
		p.fn(Progress{Done: p.n, Total: p.total})
	}
}

func (p *progressTracker) emit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fn != nil {
		p.fn(Progress{Done: p.n, Total: p.total})
	}
}
