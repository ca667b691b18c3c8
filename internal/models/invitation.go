package models

import (
	"strings"
	"time"
)

// InvitationStatus tracks the lifecycle of an offer to join a booking.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationDeclined  InvitationStatus = "declined"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// IsResolved reports whether the invitation can no longer change.
func (s InvitationStatus) IsResolved() bool {
	return s != InvitationPending
}

// Invitation models the offer rather than the membership. Exactly one of
// TargetEmail and TargetUserID is set.
type Invitation struct {
	BaseModel

	BookingID    string           `gorm:"type:uuid;not null;index" json:"booking_id"`
	Seq          int              `gorm:"not null" json:"seq"`
	TargetEmail  string           `gorm:"index" json:"target_email,omitempty"`
	TargetUserID string           `gorm:"index" json:"target_user_id,omitempty"`
	InvitedBy    string           `gorm:"not null" json:"invited_by"`
	Status       InvitationStatus `gorm:"size:16;not null;index" json:"status"`

	ExpiresAt       time.Time  `gorm:"index" json:"expires_at"`
	RemindersSent   int        `gorm:"not null" json:"reminders_sent"`
	LastRemindedAt  *time.Time `json:"last_reminded_at,omitempty"`
	PersonalMessage string     `json:"personal_message,omitempty"`

	RespondedAt *time.Time `json:"responded_at,omitempty"`
	RespondedBy string     `json:"responded_by,omitempty"`
}

// TableName pins the invitation table.
func (Invitation) TableName() string { return "group_booking_invitations" }

// TargetKey identifies the invitee independent of how they were addressed.
func (i *Invitation) TargetKey() string {
	if i.TargetUserID != "" {
		return "user:" + i.TargetUserID
	}
	return "email:" + strings.ToLower(strings.TrimSpace(i.TargetEmail))
}

// IsExpiredAt reports whether now is past the invitation's deadline.
func (i *Invitation) IsExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
