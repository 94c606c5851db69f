package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"AShareScreener/internal/collector"
	"AShareScreener/internal/export"
	"AShareScreener/internal/logger"
	"AShareScreener/internal/model"
	"AShareScreener/internal/notifier"
	"AShareScreener/internal/recorder"
	"AShareScreener/internal/screener"
	"AShareScreener/internal/store"
)

// ErrBusy is returned when a screening run is already in progress.
var ErrBusy = errors.New("a screening run is already in progress")

// Refresher keeps the local market data current.
type Refresher interface {
	Refresh(ctx context.Context, progress func(done, total int)) (*collector.RefreshSummary, error)
	RefreshReference(ctx context.Context) (int, error)
}

// Runner screens a list of codes.
type Runner interface {
	Screen(ctx context.Context, codes []string, progress screener.ProgressFunc) (*model.ScreeningResult, error)
}

// StatsSource reports local data coverage.
type StatsSource interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// Options controls what a scheduled screening run covers.
type Options struct {
	WatchlistPath string
	CapFilter     bool
	MinMarketCap  float64
	MaxMarketCap  float64
	ExportDir     string
	ExportAll     bool
	// SkipRefresh screens whatever is already stored.
	SkipRefresh bool
}

// Scheduler manages the cron jobs and serialises screening runs.
type Scheduler struct {
	Cron      *cron.Cron
	Refresher Refresher
	Runner    Runner
	Caps      screener.CapSource
	Stats     StatsSource
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Options   Options
	Ctx       context.Context
	Now       func() time.Time

	running atomic.Bool

	mu         sync.RWMutex
	last       *model.ScreeningResult
	lastExport string
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, ref Refresher, run Runner, caps screener.CapSource, stats StatsSource,
	n notifier.Notifier, rec recorder.Recorder, opts Options) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Refresher: ref,
		Runner:    run,
		Caps:      caps,
		Stats:     stats,
		Notifier:  n,
		Recorder:  rec,
		Options:   opts,
		Ctx:       ctx,
		Now:       time.Now,
	}
}

// RegisterAll registers the daily screening job and the reference refresh job.
func (s *Scheduler) RegisterAll(screenCron, referenceCron string) error {
	if _, err := s.Cron.AddFunc(screenCron, s.screenJob); err != nil {
		return fmt.Errorf("register screen job: %w", err)
	}
	if _, err := s.Cron.AddFunc(referenceCron, s.referenceJob); err != nil {
		return fmt.Errorf("register reference job: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.Infof("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	logger.Infof("scheduler stopped")
}

// Last returns the most recent successful result and its export path.
func (s *Scheduler) Last() (*model.ScreeningResult, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastExport
}

// Running reports whether a screening run is in progress.
func (s *Scheduler) Running() bool { return s.running.Load() }

// RunScreenNow runs the screening pipeline synchronously.
func (s *Scheduler) RunScreenNow(ctx context.Context) (*model.ScreeningResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.running.Store(false)
	return s.runScreen(ctx)
}

// TriggerScreen starts a run in the background on the scheduler context.
func (s *Scheduler) TriggerScreen() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	go func() {
		defer s.running.Store(false)
		if _, err := s.runScreen(s.Ctx); err != nil {
			logger.Errorf("triggered screening: %v", err)
		}
	}()
	return nil
}

func (s *Scheduler) screenJob() {
	logger.Infof("running scheduled screening")
	if _, err := s.RunScreenNow(s.Ctx); err != nil {
		if errors.Is(err, ErrBusy) {
			logger.Warnf("scheduled screening skipped: %v", err)
			return
		}
		logger.Errorf("scheduled screening: %v", err)
	}
}

func (s *Scheduler) referenceJob() {
	logger.Infof("running reference refresh")
	if _, err := s.Refresher.RefreshReference(s.Ctx); err != nil {
		logger.Errorf("reference refresh: %v", err)
	}
}

func (s *Scheduler) runScreen(ctx context.Context) (*model.ScreeningResult, error) {
	if !s.Options.SkipRefresh && s.Refresher != nil {
		if _, err := s.Refresher.Refresh(ctx, nil); err != nil {
			// stale data still screens; the report says when it was run
			logger.Warnf("data refresh failed, screening stored data: %v", err)
		}
	}

	var watchlist []string
	if s.Options.WatchlistPath != "" {
		codes, err := export.LoadWatchlist(s.Options.WatchlistPath)
		if err != nil {
			s.trySend(fmt.Sprintf("❌ 读取自选股失败: %v", err))
			return nil, fmt.Errorf("load watchlist: %w", err)
		}
		watchlist = codes
	}
	var caps screener.CapSource
	if s.Options.CapFilter {
		caps = s.Caps
	}
	codes := screener.Universe(ctx, watchlist, caps, s.Options.MinMarketCap, s.Options.MaxMarketCap)

	result, err := s.Runner.Screen(ctx, codes, logProgress())
	if err != nil {
		s.trySend(fmt.Sprintf("❌ 选股失败: %v", err))
		return nil, err
	}

	path := ""
	if s.Options.ExportDir != "" {
		path, err = export.ExportFile(s.Options.ExportDir, result, !s.Options.ExportAll, s.Now())
		if err != nil {
			logger.Errorf("export result: %v", err)
			path = ""
		} else {
			logger.Infof("result exported to %s", path)
		}
	}
	if s.Recorder != nil {
		if err := s.Recorder.RecordRun(result); err != nil {
			logger.Errorf("record run: %v", err)
		}
	}

	s.mu.Lock()
	s.last, s.lastExport = result, path
	s.mu.Unlock()

	s.trySend(notifier.FormatScreeningReport(result, path))
	return result, nil
}

// logProgress logs every tenth of the run.
func logProgress() screener.ProgressFunc {
	step := -1
	return func(p screener.Progress) {
		if tenth := int(p.Fraction() * 10); tenth > step {
			step = tenth
			logger.Infof("screening progress %d/%d", p.Done, p.Total)
		}
	}
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/screen", "选股":
		if err := s.TriggerScreen(); err != nil {
			return "⏳ 选股正在进行中，请稍后"
		}
		return "🚀 已开始选股，完成后推送结果"
	case "/refresh", "更新数据":
		summary, err := s.Refresher.Refresh(s.Ctx, nil)
		if err != nil {
			return fmt.Sprintf("❌ 数据更新失败: %v", err)
		}
		return notifier.FormatRefresh(summary.Dates, summary.BarsStored, summary.FailedDates)
	case "/stats", "数据状态":
		st, err := s.Stats.Stats(s.Ctx)
		if err != nil {
			return fmt.Sprintf("❌ 查询失败: %v", err)
		}
		return notifier.FormatStats(st)
	default:
		return "可用命令:\n• /screen 立即选股\n• /refresh 更新数据\n• /stats 数据状态"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := notifier.SendWithRetry(s.Ctx, s.Notifier, text, 3, 2*time.Second); err != nil {
		logger.Errorf("send notification: %v", err)
	}
}
