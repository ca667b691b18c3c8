// Package logger owns the process-wide zap logger. Packages take child loggers
// through WithModule at construction time.
package logger

import (
	"errors"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options describes how Init builds the logger.
type Options struct {
	Level   string
	Format  string
	Service string
}

var (
	mu     sync.RWMutex
	global = zap.NewNop()

	// level is shared by every logger Init builds so SetLevel applies live.
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// ParseLevel maps a level name onto zap, treating unknown names as info.
func ParseLevel(name string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(name)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Build returns a logger for opts without installing it.
func Build(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatConsole) {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = level
	level.SetLevel(ParseLevel(opts.Level))

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if service := strings.TrimSpace(opts.Service); service != "" {
		log = log.With(zap.String("service", service))
	}
	return log, nil
}

// Init builds a logger from opts and installs it globally.
func Init(opts Options) error {
	log, err := Build(opts)
	if err != nil {
		return err
	}
	Replace(log)
	return nil
}

// SetLevel changes the level of loggers built by Init without rebuilding them.
func SetLevel(name string) {
	level.SetLevel(ParseLevel(name))
}

// Replace installs log globally and returns a function restoring the previous
// logger. Tests pair it with t.Cleanup.
func Replace(log *zap.Logger) func() {
	if log == nil {
		log = zap.NewNop()
	}

	mu.Lock()
	previous := global
	global = log
	mu.Unlock()

	return func() {
		mu.Lock()
		global = previous
		mu.Unlock()
	}
}

func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// WithModule returns a child logger tagged with module.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Sync flushes buffered entries. Syncing a terminal or pipe fails with EINVAL
// or ENOTTY on Linux; those are not reported.
func Sync() error {
	err := Logger().Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}
