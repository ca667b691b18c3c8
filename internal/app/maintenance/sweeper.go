package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/groupdesk/pkg/logger"
	"github.com/charlesng35/groupdesk/pkg/metrics"
)

const (
	defaultExpireSpec   = "@every 1m"
	defaultCompleteSpec = "@every 5m"
	defaultReminderSpec = "@hourly"
	defaultPurgeSpec    = "@every 10m"

	defaultReminderWindow = 24 * time.Hour
)

// Job names used in logs and metrics.
const (
	JobExpireInvitations = "expire_invitations"
	JobCompleteBookings  = "complete_bookings"
	JobSendReminders     = "send_reminders"
	JobPurgeRateCounters = "purge_rate_counters"
)

// Bookings is the sweep surface of the booking service.
type Bookings interface {
	Expire(ctx context.Context, now time.Time) (int, error)
	CompleteElapsed(ctx context.Context, now time.Time) (int, error)
	SendDueReminders(ctx context.Context, now time.Time, window time.Duration) (int, error)
}

// CounterPurger drops rate limit windows that have closed. Only stores that
// persist counters need it.
type CounterPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper drives the time-based transitions no user action triggers: invitation
// expiry, booking completion and reminder delivery.
type Sweeper struct {
	bookings Bookings
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	window   time.Duration

	expireSchedule   string
	completeSchedule string
	reminderSchedule string

	purger        CounterPurger
	purgeSchedule string
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock passed to each sweep.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReminderWindow sets how close to expiry an invitation must be to get a reminder.
func WithReminderWindow(window time.Duration) Option {
	return func(s *Sweeper) {
		if window > 0 {
			s.window = window
		}
	}
}

// WithSchedules overrides the cron specifications. An empty spec keeps the
// default; "-" disables the job.
func WithSchedules(expire, complete, reminder string) Option {
	return func(s *Sweeper) {
		if expire != "" {
			s.expireSchedule = expire
		}
		if complete != "" {
			s.completeSchedule = complete
		}
		if reminder != "" {
			s.reminderSchedule = reminder
		}
	}
}

// WithCounterPurge adds a job clearing closed rate limit windows from p. An
// empty spec uses the default; "-" disables the job.
func WithCounterPurge(p CounterPurger, spec string) Option {
	return func(s *Sweeper) {
		s.purger = p
		if spec != "" {
			s.purgeSchedule = spec
		}
	}
}

// NewSweeper constructs a Sweeper with default schedules.
func NewSweeper(bookings Bookings, opts ...Option) *Sweeper {
	s := &Sweeper{
		bookings:         bookings,
		now:              time.Now,
		window:           defaultReminderWindow,
		expireSchedule:   defaultExpireSpec,
		completeSchedule: defaultCompleteSpec,
		reminderSchedule: defaultReminderSpec,
		purgeSchedule:    defaultPurgeSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context, now time.Time) (int, error)
}

func (s *Sweeper) jobs() []job {
	jobs := []job{
		{name: JobExpireInvitations, schedule: s.expireSchedule, run: s.bookings.Expire},
		{name: JobCompleteBookings, schedule: s.completeSchedule, run: s.bookings.CompleteElapsed},
		{name: JobSendReminders, schedule: s.reminderSchedule, run: func(ctx context.Context, now time.Time) (int, error) {
			return s.bookings.SendDueReminders(ctx, now, s.window)
		}},
	}
	if s.purger != nil {
		jobs = append(jobs, job{name: JobPurgeRateCounters, schedule: s.purgeSchedule, run: s.purger.PurgeExpired})
	}
	return jobs
}

// Start registers the sweep jobs with the cron scheduler and launches it.
func (s *Sweeper) Start() error {
	if s.bookings == nil {
		return nil
	}

	for _, j := range s.jobs() {
		if j.schedule == "-" {
			continue
		}
		j := j
		if _, err := s.cron.AddFunc(j.schedule, func() {
			_ = s.runJob(context.Background(), j)
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every sweep sequentially. Used in tests and during graceful shutdown.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.bookings == nil {
		return nil
	}

	var errs error
	for _, j := range s.jobs() {
		errs = multierr.Append(errs, s.runJob(ctx, j))
	}
	return errs
}

func (s *Sweeper) runJob(ctx context.Context, j job) error {
	affected, err := j.run(ctx, s.now().UTC())
	if affected > 0 {
		metrics.MaintenanceAffected.WithLabelValues(j.name).Add(float64(affected))
	}
	if err != nil {
		metrics.MaintenanceSweeps.WithLabelValues(j.name, "error").Inc()
		s.log.Warn("sweep failed", zap.String("job", j.name), zap.Int("affected", affected), zap.Error(err))
		return fmt.Errorf("%s: %w", j.name, err)
	}

	metrics.MaintenanceSweeps.WithLabelValues(j.name, "ok").Inc()
	if affected > 0 {
		s.log.Info("sweep completed", zap.String("job", j.name), zap.Int("affected", affected))
	}
	return nil
}
