package notifications

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a booking state transition that subscribers may react to.
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCompleted EventType = "booking.completed"
	EventBookingNoShow    EventType = "booking.no_show"

	EventParticipantJoined   EventType = "participant.joined"
	EventParticipantPending  EventType = "participant.pending"
	EventParticipantRejected EventType = "participant.rejected"
	EventParticipantRemoved  EventType = "participant.removed"
	EventParticipantLeft     EventType = "participant.left"

	EventInviteReceived  EventType = "invitation.received"
	EventInviteDeclined  EventType = "invitation.declined"
	EventInviteExpired   EventType = "invitation.expired"
	EventInviteCancelled EventType = "invitation.cancelled"
	EventInviteReminder  EventType = "invitation.reminder"
)

// Event is emitted after a booking mutation commits. Recipients are user ids;
// Email is set when the subject is an invitation addressed by e-mail.
type Event struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	BookingID    string         `json:"booking_id"`
	UserID       string         `json:"user_id,omitempty"`
	InvitationID string         `json:"invitation_id,omitempty"`
	Email        string         `json:"email,omitempty"`
	Recipients   []string       `json:"recipients,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// NewEvent builds an event with a fresh identifier.
func NewEvent(eventType EventType, bookingID string, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		BookingID:  bookingID,
		OccurredAt: occurredAt.UTC(),
	}
}
