package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/groupdesk/pkg/logger"
)

// LoggerOptions maps the server block onto logger options. Every line carries
// service=groupdesk, or groupdesk-worker for the mail worker process.
func (c ServerConfig) LoggerOptions(worker bool) logger.Options {
	opts := logger.Options{
		Level:   strings.TrimSpace(c.LogLevel),
		Format:  strings.ToLower(strings.TrimSpace(c.LogFormat)),
		Service: "groupdesk",
	}
	if opts.Level == "" {
		opts.Level = "info"
	}
	if opts.Format != logger.FormatConsole {
		opts.Format = logger.FormatJSON
	}
	if worker {
		opts.Service = "groupdesk-worker"
	}
	return opts
}

// ConfigureLogging installs the global logger for this process.
func ConfigureLogging(cfg ServerConfig, worker bool) error {
	if err := logger.Init(cfg.LoggerOptions(worker)); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	return nil
}
