package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/groupdesk/internal/database/testutil"
	"github.com/charlesng35/groupdesk/internal/models"
	"github.com/charlesng35/groupdesk/internal/notifications"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Types() []notifications.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]notifications.EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

func (p *recordingPublisher) Count(eventType notifications.EventType) int {
	count := 0
	for _, t := range p.Types() {
		if t == eventType {
			count++
		}
	}
	return count
}

type bookingFixture struct {
	svc       *GroupBookingService
	clock     *fakeClock
	publisher *recordingPublisher
}

func newBookingFixture(t *testing.T, opts ...GroupBookingOption) *bookingFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newFakeClock()
	publisher := &recordingPublisher{}

	base := []GroupBookingOption{
		WithClock(clock.Now),
		WithEventPublisher(publisher),
	}
	svc, err := NewGroupBookingService(db, append(base, opts...)...)
	require.NoError(t, err)

	return &bookingFixture{svc: svc, clock: clock, publisher: publisher}
}

func validCreateRequest(minParticipants, maxParticipants int) CreateGroupBookingRequest {
	return CreateGroupBookingRequest{
		WorkspaceRef:    "ws-berlin-01",
		GroupName:       "Sprint planning",
		RoomType:        "meeting-room",
		Date:            "2025-03-10",
		StartTime:       "10:00",
		EndTime:         "12:00",
		MinParticipants: minParticipants,
		MaxParticipants: maxParticipants,
	}
}

func (f *bookingFixture) createBooking(t *testing.T, req CreateGroupBookingRequest) *models.GroupBooking {
	t.Helper()
	booking, err := f.svc.Create(context.Background(), "organizer", req)
	require.NoError(t, err)
	return booking
}

func (f *bookingFixture) join(t *testing.T, booking *models.GroupBooking, userID string) AdmissionResult {
	t.Helper()
	result, err := f.svc.JoinByCode(context.Background(), booking.InviteCode, userID)
	require.NoError(t, err)
	return result
}

func (f *bookingFixture) stats(t *testing.T, bookingID string) GroupBookingStats {
	t.Helper()
	stats, err := f.svc.GetStats(context.Background(), Actor{UserID: "organizer"}, bookingID)
	require.NoError(t, err)
	return stats
}
