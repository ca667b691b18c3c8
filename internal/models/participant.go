package models

import "time"

// ParticipantStatus captures a user's membership state within a booking.
type ParticipantStatus string

const (
	ParticipantInvited  ParticipantStatus = "invited"
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantAccepted ParticipantStatus = "accepted"
	ParticipantDeclined ParticipantStatus = "declined"
)

// Participant is a (booking, user) pair. Only accepted rows count toward occupancy.
type Participant struct {
	BaseModel

	BookingID string            `gorm:"type:uuid;not null;uniqueIndex:idx_participant_booking_user" json:"booking_id"`
	UserID    string            `gorm:"not null;uniqueIndex:idx_participant_booking_user;index" json:"user_id"`
	Seq       int               `gorm:"not null" json:"seq"`
	Status    ParticipantStatus `gorm:"size:16;not null;index" json:"status"`

	InvitedAt    time.Time  `json:"invited_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
	InvitedBy    *string    `json:"invited_by,omitempty"`
	InvitationID *string    `gorm:"type:uuid" json:"invitation_id,omitempty"`

	// Removed marks a declined row produced by organizer removal rather than the user.
	Removed   bool    `gorm:"not null" json:"removed"`
	RemovedBy *string `json:"removed_by,omitempty"`
	// Waitlisted marks a pending row created because the group was full when an
	// invitation was accepted.
	Waitlisted bool `gorm:"not null" json:"waitlisted"`
}

// TableName pins the participant ledger table.
func (Participant) TableName() string { return "group_booking_participants" }
