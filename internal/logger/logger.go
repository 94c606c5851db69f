// Package logger is a thin process-wide wrapper around zap with printf-style
// helpers. Until Init is called every call is a no-op.
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	current.Store(zap.NewNop().Sugar())
}

// Init builds a production JSON logger at the given level ("debug", "info",
// "warn", "error") and tags every entry with the service name.
func Init(level, service string) error {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return err
		}
		cfg.Level = lvl
	}
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	current.Store(l.Sugar().With(zap.String("service", service)))
	return nil
}

// Set replaces the active logger, mainly for tests (zaptest/observer).
func Set(l *zap.Logger) {
	current.Store(l.Sugar())
}

// Sync flushes buffered entries.
func Sync() {
	_ = current.Load().Sync()
}

func Debugf(format string, args ...interface{}) { current.Load().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current.Load().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current.Load().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current.Load().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { current.Load().Fatalf(format, args...) }
