package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/charlesng35/groupdesk/internal/database/testutil"
	"github.com/charlesng35/groupdesk/internal/models"
	"github.com/charlesng35/groupdesk/internal/services"
)

type fakeBookings struct {
	mu        sync.Mutex
	calls     []string
	window    time.Duration
	now       time.Time
	expireErr error
}

func (f *fakeBookings) record(name string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.now = now
}

func (f *fakeBookings) Expire(_ context.Context, now time.Time) (int, error) {
	f.record(JobExpireInvitations, now)
	return 2, f.expireErr
}

func (f *fakeBookings) CompleteElapsed(_ context.Context, now time.Time) (int, error) {
	f.record(JobCompleteBookings, now)
	return 0, nil
}

func (f *fakeBookings) SendDueReminders(_ context.Context, now time.Time, window time.Duration) (int, error) {
	f.record(JobSendReminders, now)
	f.mu.Lock()
	f.window = window
	f.mu.Unlock()
	return 1, nil
}

func TestSweeperRunOnceCallsEveryJob(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := &fakeBookings{}
	sweeper := NewSweeper(fake, WithNow(func() time.Time { return fixed }), WithReminderWindow(6*time.Hour))

	require.NoError(t, sweeper.RunOnce(context.Background()))
	require.Equal(t, []string{JobExpireInvitations, JobCompleteBookings, JobSendReminders}, fake.calls)
	require.Equal(t, 6*time.Hour, fake.window)
	require.True(t, fake.now.Equal(fixed))
}

func TestSweeperRunOnceAggregatesErrors(t *testing.T) {
	boom := errors.New("database gone")
	fake := &fakeBookings{expireErr: boom}
	sweeper := NewSweeper(fake)

	err := sweeper.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), JobExpireInvitations)
	// Later jobs still ran.
	require.Len(t, fake.calls, 3)
}

func TestSweeperStartRegistersSchedules(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	sweeper := NewSweeper(&fakeBookings{}, WithCron(c), WithSchedules("@every 30s", "-", ""))

	require.NoError(t, sweeper.Start())
	t.Cleanup(func() { <-sweeper.Stop().Done() })

	require.Len(t, c.Entries(), 2)
}

type fakePurger struct{ at time.Time }

func (f *fakePurger) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	f.at = now
	return 4, nil
}

func TestSweeperPurgesRateCounters(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := &fakeBookings{}
	purger := &fakePurger{}
	sweeper := NewSweeper(fake, WithNow(func() time.Time { return fixed }), WithCounterPurge(purger, ""))

	require.NoError(t, sweeper.RunOnce(context.Background()))
	require.True(t, purger.at.Equal(fixed))

	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	sweeper = NewSweeper(fake, WithCron(c), WithCounterPurge(purger, "-"))
	require.NoError(t, sweeper.Start())
	t.Cleanup(func() { <-sweeper.Stop().Done() })
	require.Len(t, c.Entries(), 3)
}

func TestSweeperStartRejectsInvalidSchedule(t *testing.T) {
	sweeper := NewSweeper(&fakeBookings{}, WithSchedules("not a schedule", "", ""))
	require.Error(t, sweeper.Start())
}

func TestSweeperPassesUTCToJobs(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 4, 0, 0, 0, time.FixedZone("EST", -5*3600))
	fake := &fakeBookings{}
	purger := &fakePurger{}
	sweeper := NewSweeper(fake, WithNow(func() time.Time { return fixed }), WithCounterPurge(purger, ""))

	require.NoError(t, sweeper.RunOnce(context.Background()))
	require.Equal(t, time.UTC, fake.now.Location())
	require.True(t, fake.now.Equal(fixed))
	require.Equal(t, time.UTC, purger.at.Location())
}

func TestSweeperEndToEnd(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	for _, loc := range []*time.Location{time.UTC, newYork} {
		t.Run(loc.String(), func(t *testing.T) {
			db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
			current := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
			clock := func() time.Time { return current.In(loc) }

			svc, err := services.NewGroupBookingService(db, services.WithClock(clock), services.WithInviteTTL(time.Hour))
			require.NoError(t, err)

			ctx := context.Background()
			booking, err := svc.Create(ctx, "organizer", services.CreateGroupBookingRequest{
				WorkspaceRef:    "ws-1",
				GroupName:       "Planning",
				Date:            "2025-03-10",
				StartTime:       "10:00",
				EndTime:         "11:00",
				MinParticipants: 1,
				MaxParticipants: 4,
			})
			require.NoError(t, err)

			invitation, err := svc.Invite(ctx, "organizer", booking.ID, services.InviteRequest{UserID: "guest"})
			require.NoError(t, err)

			current = current.Add(2 * time.Hour)
			sweeper := NewSweeper(svc, WithNow(clock))
			require.NoError(t, sweeper.RunOnce(ctx))

			var stored models.Invitation
			require.NoError(t, db.First(&stored, "id = ?", invitation.ID).Error)
			require.Equal(t, models.InvitationExpired, stored.Status)

			current = booking.EndsAt.Add(time.Hour)
			require.NoError(t, sweeper.RunOnce(ctx))

			var closed models.GroupBooking
			require.NoError(t, db.First(&closed, "id = ?", booking.ID).Error)
			require.Equal(t, models.GroupBookingNoShow, closed.Status)
		})
	}
}
