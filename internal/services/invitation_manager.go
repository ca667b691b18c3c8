package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/groupdesk/internal/models"
	"github.com/charlesng35/groupdesk/internal/notifications"
)

// InviteResponse is the invitee's answer to an invitation.
type InviteResponse string

const (
	InviteAccept  InviteResponse = "accept"
	InviteDecline InviteResponse = "decline"
)

// InviteRequest addresses an invitation to exactly one of Email or UserID.
type InviteRequest struct {
	Email           string
	UserID          string
	PersonalMessage string
}

// InvitationResult pairs the resolved invitation with the admission it caused.
// Admission is nil when the invitation was declined.
type InvitationResult struct {
	Invitation models.Invitation `json:"invitation"`
	Admission  *AdmissionResult  `json:"admission,omitempty"`
}

func findInvitation(booking *models.GroupBooking, invitationID string) *models.Invitation {
	for i := range booking.Invitations {
		if booking.Invitations[i].ID == invitationID {
			return &booking.Invitations[i]
		}
	}
	return nil
}

func isInvitee(invitation *models.Invitation, actor Actor) bool {
	if invitation.TargetUserID != "" {
		return actor.UserID != "" && invitation.TargetUserID == actor.UserID
	}
	email := normaliseEmail(actor.Email)
	return email != "" && email == normaliseEmail(invitation.TargetEmail)
}

func canInvite(booking *models.GroupBooking, actorID string) bool {
	if booking.OrganizerID == actorID {
		return true
	}
	if !booking.Settings.AllowParticipantInvites {
		return false
	}
	participant := findParticipant(booking, actorID)
	return participant != nil && participant.Status == models.ParticipantAccepted
}

func canManageInvitation(booking *models.GroupBooking, invitation *models.Invitation, actorID string) bool {
	return booking.OrganizerID == actorID || invitation.InvitedBy == actorID
}

func expireInvitation(m *mutation, invitation *models.Invitation) {
	invitation.Status = models.InvitationExpired
	m.touch()
	m.invitationTransition(models.InvitationExpired)

	event := m.event(notifications.EventInviteExpired)
	event.InvitationID = invitation.ID
	event.Recipients = []string{invitation.InvitedBy}
	m.emit(event)
}

func inviteeEvent(m *mutation, eventType notifications.EventType, invitation *models.Invitation) notifications.Event {
	event := m.event(eventType)
	event.InvitationID = invitation.ID
	event.Email = invitation.TargetEmail
	if invitation.TargetUserID != "" {
		event.UserID = invitation.TargetUserID
		event.Recipients = []string{invitation.TargetUserID}
	}
	return event
}

// Invite issues an invitation. The organizer may always invite; accepted participants
// only when the booking allows participant invites.
func (s *GroupBookingService) Invite(ctx context.Context, actorID, bookingID string, req InviteRequest) (*models.Invitation, error) {
	email := normaliseEmail(req.Email)
	userID := strings.TrimSpace(req.UserID)
	message := strings.TrimSpace(req.PersonalMessage)
	switch {
	case (email == "") == (userID == ""):
		return nil, validationError("exactly one of email or user id must be provided")
	case email != "" && !strings.Contains(email, "@"):
		return nil, validationError("email is invalid")
	case len(message) > maxTextLength:
		return nil, validationError(fmt.Sprintf("personal message must be at most %d characters", maxTextLength))
	}

	var issued models.Invitation
	_, err := s.mutate(ctx, bookingID, func(m *mutation) error {
		booking := m.booking
		if !booking.Status.IsOpen() {
			return ErrBookingClosed
		}
		if !canInvite(booking, actorID) {
			return ErrPermissionDenied
		}
		if userID != "" {
			if userID == booking.OrganizerID {
				return ErrAlreadyMember
			}
			if participant := findParticipant(booking, userID); participant != nil && isMemberStatus(participant.Status) {
				return ErrAlreadyMember
			}
		}

		invitation := models.Invitation{
			BookingID:       booking.ID,
			Seq:             len(booking.Invitations) + 1,
			TargetEmail:     email,
			TargetUserID:    userID,
			InvitedBy:       actorID,
			Status:          models.InvitationPending,
			ExpiresAt:       m.now.Add(s.inviteTTL),
			PersonalMessage: message,
		}
		key := invitation.TargetKey()
		for i := range booking.Invitations {
			existing := &booking.Invitations[i]
			if existing.Status != models.InvitationPending || existing.TargetKey() != key {
				continue
			}
			if existing.IsExpiredAt(m.now) {
				expireInvitation(m, existing)
				continue
			}
			return ErrDuplicateInvitation
		}

		invitation.EnsureID()
		booking.Invitations = append(booking.Invitations, invitation)
		m.touch()

		event := inviteeEvent(m, notifications.EventInviteReceived, &invitation)
		event.Data = map[string]any{
			"group_name":       booking.GroupName,
			"invited_by":       actorID,
			"expires_at":       invitation.ExpiresAt,
			"personal_message": message,
		}
		m.emit(event)
		issued = invitation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &issued, nil
}

// Respond resolves an invitation on behalf of its invitee. An accepted invitation
// stays accepted even when the group filled up meanwhile; the invitee is then
// waitlisted as a pending participant.
func (s *GroupBookingService) Respond(ctx context.Context, actor Actor, invitationID string, response InviteResponse) (*InvitationResult, error) {
	ctx = ensureContext(ctx)
	if response != InviteAccept && response != InviteDecline {
		return nil, validationError("response must be accept or decline")
	}
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, validationError("user is required")
	}

	bookingID, err := s.repo.bookingIDForInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	var (
		result     InvitationResult
		respondErr error
	)
	_, err = s.mutate(ctx, bookingID, func(m *mutation) error {
		booking := m.booking
		invitation := findInvitation(booking, invitationID)
		if invitation == nil {
			return ErrInvitationNotFound
		}
		if !isInvitee(invitation, actor) {
			return ErrPermissionDenied
		}
		if invitation.Status == models.InvitationExpired {
			return ErrInviteExpired
		}
		if invitation.IsExpiredAt(m.now) {
			if invitation.Status == models.InvitationPending {
				expireInvitation(m, invitation)
			}
			respondErr = ErrInviteExpired
			return nil
		}
		if invitation.Status.IsResolved() {
			return ErrAlreadyResolved
		}
		if !booking.Status.IsOpen() {
			return ErrBookingClosed
		}

		if response == InviteDecline {
			invitation.Status = models.InvitationDeclined
			invitation.RespondedAt = &m.now
			invitation.RespondedBy = actor.UserID
			m.touch()
			m.invitationTransition(models.InvitationDeclined)

			event := m.event(notifications.EventInviteDeclined)
			event.InvitationID = invitation.ID
			event.UserID = actor.UserID
			event.Recipients = []string{invitation.InvitedBy}
			m.emit(event)
			result.Invitation = *invitation
			return nil
		}

		admission := tryAdmit(booking, admissionRequest{
			userID:       actor.UserID,
			source:       sourceInvitation,
			invitedBy:    stringPtr(invitation.InvitedBy),
			invitationID: stringPtr(invitation.ID),
			waitlist:     true,
			allowRemoved: invitation.InvitedBy == booking.OrganizerID,
			now:          m.now,
		})
		m.admission(sourceInvitation, admission)
		if admission.Outcome != AdmissionRejected {
			invitation.Status = models.InvitationAccepted
			invitation.RespondedAt = &m.now
			invitation.RespondedBy = actor.UserID
			m.touch()
			m.invitationTransition(models.InvitationAccepted)
			emitAdmission(m, admission, actor.UserID)
			m.confirmIfReady()
		}

		admission = detach(admission)
		result.Invitation = *invitation
		result.Admission = &admission
		return nil
	})
	if err != nil {
		return nil, err
	}
	if respondErr != nil {
		return nil, respondErr
	}
	return &result, nil
}

// CancelInvitation withdraws a pending invitation. Its issuer and the organizer may cancel.
func (s *GroupBookingService) CancelInvitation(ctx context.Context, actorID, invitationID string) (*models.Invitation, error) {
	return s.updateInvitation(ctx, actorID, invitationID, func(m *mutation, invitation *models.Invitation) error {
		if invitation.Status.IsResolved() {
			return ErrAlreadyResolved
		}
		invitation.Status = models.InvitationCancelled
		invitation.RespondedAt = &m.now
		m.touch()
		m.invitationTransition(models.InvitationCancelled)
		m.emit(inviteeEvent(m, notifications.EventInviteCancelled, invitation))
		return nil
	})
}

// SendReminder nudges the invitee of a pending invitation again.
func (s *GroupBookingService) SendReminder(ctx context.Context, actorID, invitationID string) (*models.Invitation, error) {
	return s.updateInvitation(ctx, actorID, invitationID, func(m *mutation, invitation *models.Invitation) error {
		if invitation.Status == models.InvitationExpired || invitation.IsExpiredAt(m.now) {
			return ErrInviteExpired
		}
		if invitation.Status.IsResolved() {
			return ErrAlreadyResolved
		}
		if !m.booking.Settings.SendReminders {
			return validationError("reminders are disabled for this group booking")
		}
		remind(m, invitation)
		return nil
	})
}

func (s *GroupBookingService) updateInvitation(ctx context.Context, actorID, invitationID string, fn func(*mutation, *models.Invitation) error) (*models.Invitation, error) {
	ctx = ensureContext(ctx)
	bookingID, err := s.repo.bookingIDForInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	var updated models.Invitation
	_, err = s.mutate(ctx, bookingID, func(m *mutation) error {
		invitation := findInvitation(m.booking, invitationID)
		if invitation == nil {
			return ErrInvitationNotFound
		}
		if !canManageInvitation(m.booking, invitation, actorID) {
			return ErrPermissionDenied
		}
		if err := fn(m, invitation); err != nil {
			return err
		}
		updated = *invitation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func remind(m *mutation, invitation *models.Invitation) {
	invitation.RemindersSent++
	invitation.LastRemindedAt = &m.now
	m.touch()

	event := inviteeEvent(m, notifications.EventInviteReminder, invitation)
	event.Data = map[string]any{
		"group_name":     m.booking.GroupName,
		"expires_at":     invitation.ExpiresAt,
		"reminders_sent": invitation.RemindersSent,
	}
	m.emit(event)
}

// ListInvitations returns the booking's invitations in issue order.
func (s *GroupBookingService) ListInvitations(ctx context.Context, actorID, bookingID string) ([]models.Invitation, error) {
	booking, err := s.repo.load(ensureContext(ctx), bookingID)
	if err != nil {
		return nil, err
	}
	if booking.OrganizerID != actorID {
		participant := findParticipant(booking, actorID)
		if participant == nil || participant.Status != models.ParticipantAccepted {
			return nil, ErrPermissionDenied
		}
	}
	return booking.Invitations, nil
}

// Expire transitions every pending invitation whose deadline passed before now to
// expired. Each booking is processed under its own lock; failures on one booking do
// not stop the sweep.
func (s *GroupBookingService) Expire(ctx context.Context, now time.Time) (int, error) {
	ctx = ensureContext(ctx)
	now = now.UTC()
	ids, err := s.repo.bookingIDsWithInvitations(ctx, "expires_at < ?", now)
	if err != nil {
		return 0, fmt.Errorf("invitation: find expired: %w", err)
	}

	var (
		expired int
		errs    error
	)
	for _, id := range ids {
		count := 0
		_, mutateErr := s.mutate(ctx, id, func(m *mutation) error {
			for i := range m.booking.Invitations {
				invitation := &m.booking.Invitations[i]
				if invitation.Status == models.InvitationPending && invitation.IsExpiredAt(now) {
					expireInvitation(m, invitation)
					count++
				}
			}
			return nil
		})
		if mutateErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("booking %s: %w", id, mutateErr))
			continue
		}
		expired += count
	}

	if expired > 0 {
		s.log.Info("expired invitations", zap.Int("count", expired))
	}
	return expired, errs
}

// SendDueReminders reminds each pending invitation expiring within window once,
// for bookings that keep reminders enabled.
func (s *GroupBookingService) SendDueReminders(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	ctx = ensureContext(ctx)
	now = now.UTC()
	deadline := now.Add(window)
	ids, err := s.repo.bookingIDsWithInvitations(ctx, "reminders_sent = 0 AND expires_at > ? AND expires_at <= ?", now, deadline)
	if err != nil {
		return 0, fmt.Errorf("invitation: find due reminders: %w", err)
	}

	var (
		sent int
		errs error
	)
	for _, id := range ids {
		count := 0
		_, mutateErr := s.mutate(ctx, id, func(m *mutation) error {
			if !m.booking.Settings.SendReminders || !m.booking.Status.IsOpen() {
				return nil
			}
			for i := range m.booking.Invitations {
				invitation := &m.booking.Invitations[i]
				if invitation.Status != models.InvitationPending || invitation.RemindersSent > 0 {
					continue
				}
				if invitation.IsExpiredAt(now) || invitation.ExpiresAt.After(deadline) {
					continue
				}
				remind(m, invitation)
				count++
			}
			return nil
		})
		if mutateErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("booking %s: %w", id, mutateErr))
			continue
		}
		sent += count
	}
	return sent, errs
}

// CompleteElapsed closes bookings whose window ended: confirmed ones complete,
// pending ones become no-shows. Outstanding invitations are cancelled.
func (s *GroupBookingService) CompleteElapsed(ctx context.Context, now time.Time) (int, error) {
	ctx = ensureContext(ctx)
	now = now.UTC()
	ids, err := s.repo.elapsedBookingIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("group booking: find elapsed: %w", err)
	}

	var (
		closed int
		errs   error
	)
	for _, id := range ids {
		done := false
		_, mutateErr := s.mutate(ctx, id, func(m *mutation) error {
			booking := m.booking
			if !booking.Status.IsOpen() || booking.EndsAt.After(now) {
				return nil
			}

			eventType := notifications.EventBookingCompleted
			if booking.Status == models.GroupBookingConfirmed {
				booking.Status = models.GroupBookingCompleted
				booking.CompletedAt = &m.now
			} else {
				booking.Status = models.GroupBookingNoShow
				eventType = notifications.EventBookingNoShow
			}
			m.touch()
			m.bookingTransition(booking.Status)
			cancelPendingInvitations(m)

			event := m.event(eventType)
			event.Recipients = bookingAudience(booking)
			m.emit(event)
			done = true
			return nil
		})
		if mutateErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("booking %s: %w", id, mutateErr))
			continue
		}
		if done {
			closed++
		}
	}
	return closed, errs
}
