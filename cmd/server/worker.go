package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/charlesng35/groupdesk/internal/app"
	"github.com/charlesng35/groupdesk/internal/notifications"
	"github.com/charlesng35/groupdesk/pkg/mail"
)

// runMailWorker consumes the notification queue until ctx is cancelled.
func runMailWorker(ctx context.Context, cfg *app.Config, log *zap.Logger) error {
	srv, mux, err := newMailWorkerServer(cfg)
	if err != nil {
		return err
	}

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start mail worker: %w", err)
	}
	log.Info("mail worker started",
		zap.String("addr", cfg.Notifications.Queue.RedisAddress),
		zap.String("queue", cfg.Notifications.Queue.Name),
		zap.Bool("smtp_enabled", cfg.Notifications.SMTP.Enabled),
	)

	<-ctx.Done()
	srv.Shutdown()
	log.Info("mail worker stopped")
	return nil
}

func newMailWorkerServer(cfg *app.Config) (*asynq.Server, *asynq.ServeMux, error) {
	queueCfg := cfg.Notifications.Queue
	if !queueCfg.Enabled {
		return nil, nil, errors.New("mail worker requires notifications.queue.enabled")
	}

	mailer, err := mail.NewSMTPMailer(cfg.Notifications.SMTP.Settings())
	if err != nil {
		return nil, nil, fmt.Errorf("initialise mailer: %w", err)
	}
	worker, err := notifications.NewMailWorker(mailer)
	if err != nil {
		return nil, nil, err
	}

	mux := asynq.NewServeMux()
	worker.Register(mux)

	concurrency := cfg.Notifications.Workers
	if concurrency <= 0 {
		concurrency = 1
	}
	queue := queueCfg.Name
	if queue == "" {
		queue = "notifications"
	}

	srv := asynq.NewServer(queueCfg.RedisClientOpt(), asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{queue: 1},
		ShutdownTimeout: shutdownTimeout,
	})
	return srv, mux, nil
}
