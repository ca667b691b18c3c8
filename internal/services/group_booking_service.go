package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/groupdesk/internal/auditctx"
	"github.com/charlesng35/groupdesk/internal/models"
	"github.com/charlesng35/groupdesk/internal/notifications"
	"github.com/charlesng35/groupdesk/pkg/logger"
	"github.com/charlesng35/groupdesk/pkg/metrics"
)

const (
	// DefaultParticipantCeiling is the hard upper bound for maxParticipants.
	DefaultParticipantCeiling = 50
	// DefaultInviteTTL is how long an invitation stays answerable.
	DefaultInviteTTL = 7 * 24 * time.Hour
	// DefaultLockTimeout bounds the wait for a booking lock when the caller sets no deadline.
	DefaultLockTimeout = 5 * time.Second

	maxGroupNameLength = 120
	maxTextLength      = 500
	maxCreateAttempts  = 3

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// EventPublisher receives events after the mutation that produced them committed.
// Implementations must not block.
type EventPublisher interface {
	Publish(ctx context.Context, event notifications.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, notifications.Event) {}

// Actor identifies the verified caller of an operation.
type Actor struct {
	UserID string
	Email  string
}

// CreateGroupBookingRequest describes a new group booking.
type CreateGroupBookingRequest struct {
	WorkspaceRef    string
	GroupName       string
	Description     string
	RoomType        string
	Date            string
	StartTime       string
	EndTime         string
	MinParticipants int
	MaxParticipants int
	IsPublic        bool
	Settings        *models.GroupSettings
	Tags            []string
}

// GroupBookingOption customises GroupBookingService behaviour.
type GroupBookingOption func(*GroupBookingService)

// WithClock injects a custom clock primarily for testing.
func WithClock(clock func() time.Time) GroupBookingOption {
	return func(s *GroupBookingService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithParticipantCeiling overrides the hard participant ceiling.
func WithParticipantCeiling(ceiling int) GroupBookingOption {
	return func(s *GroupBookingService) {
		if ceiling > 0 {
			s.ceiling = ceiling
		}
	}
}

// WithInviteTTL overrides the invitation lifetime.
func WithInviteTTL(d time.Duration) GroupBookingOption {
	return func(s *GroupBookingService) {
		if d > 0 {
			s.inviteTTL = d
		}
	}
}

// WithLockTimeout overrides the default lock wait.
func WithLockTimeout(d time.Duration) GroupBookingOption {
	return func(s *GroupBookingService) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLocation sets the time zone booking dates and times are expressed in.
func WithLocation(loc *time.Location) GroupBookingOption {
	return func(s *GroupBookingService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithInviteCodeGenerator replaces the invite code generator.
func WithInviteCodeGenerator(generator *InviteCodeGenerator) GroupBookingOption {
	return func(s *GroupBookingService) {
		if generator != nil {
			s.codes = generator
		}
	}
}

// WithEventPublisher wires the post-commit notification sink.
func WithEventPublisher(publisher EventPublisher) GroupBookingOption {
	return func(s *GroupBookingService) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// GroupBookingService owns the booking aggregate lifecycle and orchestrates the
// participant ledger, invitation manager and admission controller. Every mutation of
// one booking runs under that booking's lock; bookings never share a lock.
type GroupBookingService struct {
	repo        *bookingRepository
	locks       *aggregateLocks
	codes       *InviteCodeGenerator
	publisher   EventPublisher
	log         *zap.Logger
	now         func() time.Time
	ceiling     int
	inviteTTL   time.Duration
	lockTimeout time.Duration
	location    *time.Location
}

// NewGroupBookingService constructs a GroupBookingService backed by db.
func NewGroupBookingService(db *gorm.DB, opts ...GroupBookingOption) (*GroupBookingService, error) {
	if db == nil {
		return nil, errors.New("group booking service: db is required")
	}

	service := &GroupBookingService{
		repo:        &bookingRepository{db: db},
		locks:       newAggregateLocks(),
		codes:       NewInviteCodeGenerator(),
		publisher:   noopPublisher{},
		log:         logger.WithModule("services.bookings"),
		now:         time.Now,
		ceiling:     DefaultParticipantCeiling,
		inviteTTL:   DefaultInviteTTL,
		lockTimeout: DefaultLockTimeout,
		location:    time.UTC,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// mutation collects the effects of one locked read-modify-write of an aggregate.
type mutation struct {
	booking *models.GroupBooking
	now     time.Time
	dirty   bool
	events  []notifications.Event
	after   []func()
}

func (m *mutation) touch() {
	m.dirty = true
}

func (m *mutation) event(eventType notifications.EventType) notifications.Event {
	return notifications.NewEvent(eventType, m.booking.ID, m.now)
}

func (m *mutation) emit(event notifications.Event) {
	m.events = append(m.events, event)
}

func (m *mutation) bookingTransition(to models.GroupBookingStatus) {
	m.after = append(m.after, func() {
		metrics.BookingTransitions.WithLabelValues(string(to)).Inc()
	})
}

func (m *mutation) invitationTransition(to models.InvitationStatus) {
	m.after = append(m.after, func() {
		metrics.InvitationTransitions.WithLabelValues(string(to)).Inc()
	})
}

func (m *mutation) admission(source admissionSource, result AdmissionResult) {
	m.after = append(m.after, func() {
		recordAdmission(source, result)
	})
}

// confirmIfReady emits the confirmation event when the minimum was just reached.
func (m *mutation) confirmIfReady() {
	if !maybeConfirm(m.booking, m.now) {
		return
	}
	m.bookingTransition(models.GroupBookingConfirmed)
	event := m.event(notifications.EventBookingConfirmed)
	event.Recipients = bookingAudience(m.booking)
	m.emit(event)
}

// mutate runs fn on a freshly loaded aggregate while holding its lock, persists the
// result when fn changed anything and dispatches events once the lock is released.
func (s *GroupBookingService) mutate(ctx context.Context, bookingID string, fn func(*mutation) error) (*models.GroupBooking, error) {
	ctx = ensureContext(ctx)
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, ErrBookingNotFound
	}

	release, err := s.locks.acquire(ctx, bookingID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	booking, err := s.repo.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	m := &mutation{booking: booking, now: s.now().UTC()}
	if err := fn(m); err != nil {
		return nil, err
	}

	if m.dirty {
		if err := s.repo.save(ctx, booking, m.now); err != nil {
			return nil, err
		}
	}
	release()

	for _, hook := range m.after {
		hook()
	}
	for _, event := range m.events {
		s.publisher.Publish(ctx, event)
	}
	return booking, nil
}

// Create validates the request, issues an invite code and persists a pending booking.
func (s *GroupBookingService) Create(ctx context.Context, organizerID string, req CreateGroupBookingRequest) (*models.GroupBooking, error) {
	ctx = ensureContext(ctx)
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, validationError("organizer is required")
	}

	booking, err := s.buildBooking(organizerID, req)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		code, err := s.codes.Generate(ctx, s.repo.codeExists)
		if err != nil {
			return nil, err
		}
		booking.InviteCode = code

		err = s.repo.create(ctx, booking)
		if err == nil {
			metrics.BookingTransitions.WithLabelValues(string(booking.Status)).Inc()
			event := notifications.NewEvent(notifications.EventBookingCreated, booking.ID, booking.CreatedAt)
			event.Recipients = []string{organizerID}
			event.Data = map[string]any{"group_name": booking.GroupName, "invite_code": booking.InviteCode}
			s.publisher.Publish(ctx, event)
			s.log.Info("group booking created", append([]zap.Field{
				zap.String("booking_id", booking.ID),
				zap.String("organizer_id", organizerID),
			}, auditctx.Fields(ctx)...)...)
			return booking, nil
		}
		// Another booking took the code between the check and the insert.
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("group booking: create: %w", err)
		}
	}

	return nil, ErrCodeSpaceExhausted
}

func (s *GroupBookingService) buildBooking(organizerID string, req CreateGroupBookingRequest) (*models.GroupBooking, error) {
	groupName := strings.TrimSpace(req.GroupName)
	switch {
	case groupName == "":
		return nil, validationError("group name is required")
	case len(groupName) > maxGroupNameLength:
		return nil, validationError(fmt.Sprintf("group name must be at most %d characters", maxGroupNameLength))
	case strings.TrimSpace(req.WorkspaceRef) == "":
		return nil, validationError("workspace reference is required")
	case len(req.Description) > maxTextLength:
		return nil, validationError(fmt.Sprintf("description must be at most %d characters", maxTextLength))
	case req.MinParticipants < 1:
		return nil, validationError("min participants must be at least 1")
	case req.MaxParticipants < req.MinParticipants:
		return nil, validationError("max participants must not be lower than min participants")
	case req.MaxParticipants > s.ceiling:
		return nil, validationError(fmt.Sprintf("max participants must not exceed %d", s.ceiling))
	}

	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(req.Date), s.location)
	if err != nil {
		return nil, validationError("date must use the YYYY-MM-DD format")
	}
	startsAt, err := combineDateTime(day, req.StartTime, s.location)
	if err != nil {
		return nil, validationError("start time must use the HH:MM format")
	}
	endsAt, err := combineDateTime(day, req.EndTime, s.location)
	if err != nil {
		return nil, validationError("end time must use the HH:MM format")
	}
	if !startsAt.Before(endsAt) {
		return nil, validationError("start time must be before end time")
	}

	settings := models.GroupSettings{SendReminders: true}
	if req.Settings != nil {
		settings = *req.Settings
	}

	return &models.GroupBooking{
		WorkspaceRef:    strings.TrimSpace(req.WorkspaceRef),
		GroupName:       groupName,
		Description:     strings.TrimSpace(req.Description),
		RoomType:        strings.TrimSpace(req.RoomType),
		Date:            day.Format(dateLayout),
		StartTime:       startsAt.Format(timeLayout),
		EndTime:         endsAt.Format(timeLayout),
		StartsAt:        startsAt.UTC(),
		EndsAt:          endsAt.UTC(),
		OrganizerID:     organizerID,
		MinParticipants: req.MinParticipants,
		MaxParticipants: req.MaxParticipants,
		IsPublic:        req.IsPublic,
		Settings:        settings,
		Tags:            normaliseTags(req.Tags),
		Status:          models.GroupBookingPending,
		Participants:    []models.Participant{},
		Invitations:     []models.Invitation{},
	}, nil
}

func combineDateTime(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse(timeLayout, strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}

// Cancel moves the booking to cancelled and cancels every outstanding invitation.
// Cancelling an already cancelled booking succeeds without further effects.
func (s *GroupBookingService) Cancel(ctx context.Context, actorID, bookingID, reason string) (*models.GroupBooking, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxTextLength {
		return nil, validationError(fmt.Sprintf("reason must be at most %d characters", maxTextLength))
	}

	booking, err := s.mutate(ctx, bookingID, func(m *mutation) error {
		booking := m.booking
		if booking.OrganizerID != actorID {
			return ErrPermissionDenied
		}
		if booking.Status == models.GroupBookingCancelled {
			return nil
		}
		if !booking.Status.IsOpen() {
			return ErrBookingClosed
		}

		booking.Status = models.GroupBookingCancelled
		booking.CancelReason = reason
		booking.CancelledAt = &m.now
		m.touch()
		m.bookingTransition(models.GroupBookingCancelled)
		cancelPendingInvitations(m)

		for _, userID := range acceptedUserIDs(booking) {
			event := m.event(notifications.EventBookingCancelled)
			event.UserID = userID
			event.Recipients = []string{userID}
			event.Data = map[string]any{"reason": reason}
			m.emit(event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("group booking cancelled", append([]zap.Field{
		zap.String("booking_id", booking.ID),
		zap.String("actor_id", actorID),
	}, auditctx.Fields(ctx)...)...)
	return booking, nil
}

func cancelPendingInvitations(m *mutation) {
	for i := range m.booking.Invitations {
		invitation := &m.booking.Invitations[i]
		if invitation.Status != models.InvitationPending {
			continue
		}
		invitation.Status = models.InvitationCancelled
		invitation.RespondedAt = &m.now
		m.invitationTransition(models.InvitationCancelled)
	}
}

// RemoveParticipant drops an accepted participant; occupancy decreases in the same step.
func (s *GroupBookingService) RemoveParticipant(ctx context.Context, actorID, bookingID, userID string) error {
	_, err := s.mutate(ctx, bookingID, func(m *mutation) error {
		booking := m.booking
		if booking.OrganizerID != actorID {
			return ErrPermissionDenied
		}
		if !booking.Status.IsOpen() {
			return ErrBookingClosed
		}

		participant := findParticipant(booking, userID)
		if participant == nil || participant.Status != models.ParticipantAccepted {
			return ErrParticipantNotFound
		}

		releaseParticipant(participant, m.now, actorID)
		m.touch()

		event := m.event(notifications.EventParticipantRemoved)
		event.UserID = userID
		event.Recipients = []string{userID}
		m.emit(event)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("participant removed", append([]zap.Field{
		zap.String("booking_id", bookingID),
		zap.String("user_id", userID),
		zap.String("actor_id", actorID),
	}, auditctx.Fields(ctx)...)...)
	return nil
}

// ApproveParticipant promotes a pending participant, re-checking capacity first.
func (s *GroupBookingService) ApproveParticipant(ctx context.Context, actorID, bookingID, userID string) (AdmissionResult, error) {
	var result AdmissionResult
	_, err := s.mutate(ctx, bookingID, func(m *mutation) error {
		if m.booking.OrganizerID != actorID {
			return ErrPermissionDenied
		}

		var err error
		result, err = approve(m.booking, userID, m.now)
		if err != nil {
			return err
		}
		m.admission(sourceApproval, result)
		if !result.Admitted() {
			return nil
		}

		m.touch()
		event := m.event(notifications.EventParticipantJoined)
		event.UserID = userID
		event.Recipients = []string{userID, m.booking.OrganizerID}
		m.emit(event)
		m.confirmIfReady()
		return nil
	})
	if err != nil {
		return AdmissionResult{}, err
	}
	return detach(result), nil
}

// RejectParticipant declines a pending join request.
func (s *GroupBookingService) RejectParticipant(ctx context.Context, actorID, bookingID, userID string) error {
	_, err := s.mutate(ctx, bookingID, func(m *mutation) error {
		booking := m.booking
		if booking.OrganizerID != actorID {
			return ErrPermissionDenied
		}
		if !booking.Status.IsOpen() {
			return ErrBookingClosed
		}

		participant := findParticipant(booking, userID)
		if participant == nil || participant.Status != models.ParticipantPending {
			return ErrParticipantNotFound
		}

		releaseParticipant(participant, m.now, "")
		m.touch()

		event := m.event(notifications.EventParticipantRejected)
		event.UserID = userID
		event.Recipients = []string{userID}
		m.emit(event)
		return nil
	})
	return err
}

// Leave withdraws the actor's own accepted or pending membership.
func (s *GroupBookingService) Leave(ctx context.Context, actorID, bookingID string) error {
	_, err := s.mutate(ctx, bookingID, func(m *mutation) error {
		booking := m.booking
		if booking.OrganizerID == actorID {
			return validationError("the organizer cannot leave; cancel the booking instead")
		}
		if !booking.Status.IsOpen() {
			return ErrBookingClosed
		}

		participant := findParticipant(booking, actorID)
		if participant == nil || !isMemberStatus(participant.Status) {
			return ErrParticipantNotFound
		}

		releaseParticipant(participant, m.now, "")
		m.touch()

		event := m.event(notifications.EventParticipantLeft)
		event.UserID = actorID
		event.Recipients = []string{booking.OrganizerID}
		m.emit(event)
		return nil
	})
	return err
}

// JoinByCode admits the user through the booking's invite code. Rejections are
// reported through the result; the error covers lookup and infrastructure failures.
func (s *GroupBookingService) JoinByCode(ctx context.Context, code, userID string) (AdmissionResult, error) {
	ctx = ensureContext(ctx)
	code = strings.ToUpper(strings.TrimSpace(code))
	userID = strings.TrimSpace(userID)
	if code == "" {
		return AdmissionResult{}, validationError("invite code is required")
	}
	if userID == "" {
		return AdmissionResult{}, validationError("user is required")
	}

	bookingID, err := s.repo.idByCode(ctx, code)
	if err != nil {
		return AdmissionResult{}, err
	}

	var result AdmissionResult
	_, err = s.mutate(ctx, bookingID, func(m *mutation) error {
		result = tryAdmit(m.booking, admissionRequest{
			userID: userID,
			source: sourceCode,
			now:    m.now,
		})
		m.admission(sourceCode, result)
		if result.Participant == nil {
			return nil
		}

		m.touch()
		emitAdmission(m, result, userID)
		m.confirmIfReady()
		return nil
	})
	if err != nil {
		return AdmissionResult{}, err
	}
	return detach(result), nil
}

func emitAdmission(m *mutation, result AdmissionResult, userID string) {
	eventType := notifications.EventParticipantJoined
	if result.Outcome == AdmissionPending {
		eventType = notifications.EventParticipantPending
	}
	event := m.event(eventType)
	event.UserID = userID
	event.Recipients = []string{m.booking.OrganizerID}
	if result.Waitlisted {
		event.Data = map[string]any{"waitlisted": true}
	}
	m.emit(event)
}

// detach copies the participant out of the aggregate's slice.
func detach(result AdmissionResult) AdmissionResult {
	if result.Participant != nil {
		participant := *result.Participant
		result.Participant = &participant
	}
	return result
}

// Get returns the booking when the actor may view it.
func (s *GroupBookingService) Get(ctx context.Context, actor Actor, bookingID string) (*models.GroupBooking, error) {
	booking, err := s.repo.load(ensureContext(ctx), bookingID)
	if err != nil {
		return nil, err
	}
	if !canView(booking, actor) {
		return nil, ErrPermissionDenied
	}
	return booking, nil
}

// GetStats projects the current snapshot; it never waits on the booking lock.
func (s *GroupBookingService) GetStats(ctx context.Context, actor Actor, bookingID string) (GroupBookingStats, error) {
	booking, err := s.Get(ctx, actor, bookingID)
	if err != nil {
		return GroupBookingStats{}, err
	}
	return BuildStats(booking), nil
}

// ListForUser returns bookings the user organizes or belongs to, soonest first.
func (s *GroupBookingService) ListForUser(ctx context.Context, userID string) ([]models.GroupBooking, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user is required")
	}
	return s.repo.listForUser(ensureContext(ctx), userID)
}

func canView(booking *models.GroupBooking, actor Actor) bool {
	if booking.IsPublic || booking.OrganizerID == actor.UserID {
		return true
	}
	if participant := findParticipant(booking, actor.UserID); participant != nil && isMemberStatus(participant.Status) {
		return true
	}
	for i := range booking.Invitations {
		invitation := &booking.Invitations[i]
		if invitation.Status == models.InvitationPending && isInvitee(invitation, actor) {
			return true
		}
	}
	return false
}

// bookingAudience is the organizer plus every accepted participant.
func bookingAudience(booking *models.GroupBooking) []string {
	return append([]string{booking.OrganizerID}, acceptedUserIDs(booking)...)
}
