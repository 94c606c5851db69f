package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"AShareScreener/internal/api"
	"AShareScreener/internal/collector"
	"AShareScreener/internal/config"
	"AShareScreener/internal/logger"
	"AShareScreener/internal/metrics"
	"AShareScreener/internal/notifier"
	"AShareScreener/internal/recorder"
	"AShareScreener/internal/scheduler"
	"AShareScreener/internal/screener"
	"AShareScreener/internal/store"
)

const service = "ashare-screener"

func main() {
	if err := logger.Init("info", service); err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, service); err != nil {
		logger.Fatalf("init logger: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config validation: %v", err)
	}
	logger.Infof("AShareScreener starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer); err != nil {
		stop()
		logger.Fatalf("%v", err)
	}
	logger.Infof("AShareScreener stopped")
}

// run wires the service and blocks until ctx is done. Every opened resource is
// released before it returns.
func run(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	st, err := store.Open(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	st.HistoryLimit = cfg.Screening.HistoryLimit

	var rec recorder.Recorder
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		logger.Warnf("init sqlite recorder failed, using noop: %v", err)
		rec = recorder.NewNoopRecorder()
	} else {
		rec = sr
	}
	defer rec.Close()

	m := metrics.New(reg)

	fetcher := collector.NewTushareFetcher(cfg.Tushare.BaseURL, cfg.Tushare.Token, cfg.Proxy, m)
	logger.Infof("data source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, st, cfg.Tushare.HistoryDays, m)
	scr := screener.New(st, st, cfg.Screening.Workers, m)

	var n notifier.Notifier = notifier.NoopNotifier{}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		if err != nil {
			logger.Warnf("telegram unavailable, notifications disabled: %v", err)
		} else {
			n = tn
		}
	}

	sched := scheduler.NewScheduler(ctx, col, scr, st, st, n, rec, scheduler.Options{
		WatchlistPath: cfg.Screening.WatchlistPath,
		CapFilter:     cfg.MarketCapFilterEnabled(),
		MinMarketCap:  cfg.Screening.MinMarketCap,
		MaxMarketCap:  cfg.Screening.MaxMarketCap,
		ExportDir:     cfg.Screening.ExportDir,
		ExportAll:     cfg.Screening.ExportAll,
	})
	if err := sched.RegisterAll(cfg.Schedule.ScreenCron, cfg.Schedule.ReferenceCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Infof("telegram polling started")
	}

	apiServer := &api.Server{Runs: sched, Stats: st, Recorder: rec, Gatherer: gatherer}
	httpServer := apiServer.NewHTTPServer(cfg.HTTP.Addr)
	go func() {
		logger.Infof("http server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server: %v", err)
			stop()
		}
	}()

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Infof("RUN_ON_START enabled, screening now")
		if err := sched.TriggerScreen(); err != nil {
			logger.Warnf("run on start: %v", err)
		}
	}

	logger.Infof("AShareScreener is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Infof("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	return nil
}
