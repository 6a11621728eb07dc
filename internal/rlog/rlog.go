// Package rlog provides the package-scoped, bracket-prefixed loggers used
// throughout the relay, backed by zap instead of the bare log.Logger the
// rest of this lineage historically used.
package rlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.Mutex
	base *zap.Logger
	dev  bool
)

// Configure sets the base logger for the whole process. Both modes write
// console-encoded lines to stdout using zap's production encoder config;
// verbose lowers the level from info to debug. It mirrors the teacher's
// "dev" flag for its own engine logger.
func Configure(verbose bool) {
	mu.Lock()
	defer mu.Unlock()
	dev = verbose
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.AddSync(os.Stdout),
		level,
	)
	base = zap.New(core)
}

func init() {
	Configure(false)
}

// Named returns the package-scoped logger for name, e.g. rlog.Named("relay")
// behaves like the teacher's stdlog.New(os.Stdout, "[engine]", ...).
func Named(name string) *zap.SugaredLogger {
	mu.Lock()
	l := base
	mu.Unlock()
	return l.Named(name).Sugar()
}

// Sync flushes the base logger; callers should defer this from main.
func Sync() error {
	mu.Lock()
	l := base
	mu.Unlock()
	return l.Sync()
}
