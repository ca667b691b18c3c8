package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/groupdesk/internal/api"
	"github.com/charlesng35/groupdesk/internal/app"
	"github.com/charlesng35/groupdesk/internal/app/maintenance"
	"github.com/charlesng35/groupdesk/internal/cache"
	"github.com/charlesng35/groupdesk/internal/database"
	"github.com/charlesng35/groupdesk/internal/notifications"
	"github.com/charlesng35/groupdesk/internal/services"
	"github.com/charlesng35/groupdesk/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Queue      *asynq.Client
	Hub        *notifications.Hub
	Dispatcher *notifications.Dispatcher
	Bookings   *services.GroupBookingService
	Sweeper    *maintenance.Sweeper
	Router     *gin.Engine

	RateLimits      cache.Store
	closeRateLimits func() error
}

// bootstrapRuntime initialises the database, notification pipeline, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := cfg.Auth.TokenService()
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Hub = notifications.NewHub()
	sinks := []notifications.Sink{notifications.NewLogSink(), stack.Hub}

	if queueCfg := cfg.Notifications.Queue; queueCfg.Enabled {
		stack.Queue = asynq.NewClient(queueCfg.RedisClientOpt())
		queueSink, err := notifications.NewQueueSink(stack.Queue, queueCfg.Name)
		if err != nil {
			return nil, fmt.Errorf("initialise notification queue: %w", err)
		}
		sinks = append(sinks, queueSink)
		log.Info("notification queue enabled", zap.String("addr", queueCfg.RedisAddress), zap.String("queue", queueCfg.Name))
	}

	stack.Dispatcher = notifications.NewDispatcher(
		notifications.WithWorkers(cfg.Notifications.Workers),
		notifications.WithBuffer(cfg.Notifications.Buffer),
		notifications.WithDeliveryTimeout(cfg.Notifications.DeliveryTimeout),
		notifications.WithSinks(sinks...),
	)
	stack.Dispatcher.Start()

	bookingOpts, err := cfg.Booking.ServiceOptions()
	if err != nil {
		return nil, err
	}
	bookingOpts = append(bookingOpts, services.WithEventPublisher(stack.Dispatcher))

	stack.Bookings, err = services.NewGroupBookingService(stack.DB, bookingOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise booking service: %w", err)
	}

	stack.RateLimits, stack.closeRateLimits, err = cfg.Cache.OpenStore(ctx, stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise rate limit store: %w", err)
	}

	sweepOpts := []maintenance.Option{
		maintenance.WithReminderWindow(cfg.Booking.ReminderWindow),
		maintenance.WithSchedules(
			cfg.Maintenance.ExpireSchedule,
			cfg.Maintenance.CompleteSchedule,
			cfg.Maintenance.ReminderSchedule,
		),
	}
	if purger, ok := stack.RateLimits.(maintenance.CounterPurger); ok {
		sweepOpts = append(sweepOpts, maintenance.WithCounterPurge(purger, cfg.Maintenance.PurgeSchedule))
	}
	stack.Sweeper = maintenance.NewSweeper(stack.Bookings, sweepOpts...)
	if err := stack.Sweeper.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:         stack.DB,
		JWT:        jwtSvc,
		Config:     cfg,
		Bookings:   stack.Bookings,
		Hub:        stack.Hub,
		RateLimits: stack.RateLimits,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources. Pending
// notifications drain before the queue client and database close.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Sweeper != nil {
		select {
		case <-s.Sweeper.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown", zap.Error(ctx.Err()))
		}
		s.Sweeper = nil
	}

	if s.Dispatcher != nil {
		s.Dispatcher.Close()
		s.Dispatcher = nil
	}

	if s.Queue != nil {
		if err := s.Queue.Close(); err != nil {
			log.Warn("notification queue shutdown", zap.Error(err))
		}
		s.Queue = nil
	}

	if s.closeRateLimits != nil {
		if err := s.closeRateLimits(); err != nil {
			log.Warn("rate limit store shutdown", zap.Error(err))
		}
		s.closeRateLimits = nil
		s.RateLimits = nil
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Prepare(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
