package models

import (
	"time"

	"gorm.io/datatypes"
)

// GroupBookingStatus is the top-level lifecycle state of a group booking.
type GroupBookingStatus string

const (
	GroupBookingPending   GroupBookingStatus = "pending"
	GroupBookingConfirmed GroupBookingStatus = "confirmed"
	GroupBookingCancelled GroupBookingStatus = "cancelled"
	GroupBookingCompleted GroupBookingStatus = "completed"
	GroupBookingNoShow    GroupBookingStatus = "no_show"
)

// IsOpen reports whether participants and invitations may still change.
func (s GroupBookingStatus) IsOpen() bool {
	return s == GroupBookingPending || s == GroupBookingConfirmed
}

// GroupSettings holds organizer-controlled behaviour for a booking. Its columns
// have no database defaults so that an explicit false is stored as false.
type GroupSettings struct {
	AllowParticipantInvites bool `gorm:"not null" json:"allow_participant_invites"`
	RequireApproval         bool `gorm:"not null" json:"require_approval"`
	SendReminders           bool `gorm:"not null" json:"send_reminders"`
}

// GroupBooking is the aggregate root: one reservable resource shared by an organizer
// and a bounded set of participants. Participants and Invitations are append-ordered
// by Seq and always loaded and saved together with the booking.
type GroupBooking struct {
	BaseModel

	WorkspaceRef string `gorm:"not null;index" json:"workspace_ref"`
	GroupName    string `gorm:"not null" json:"group_name"`
	Description  string `json:"description,omitempty"`
	RoomType     string `json:"room_type,omitempty"`

	Date      string    `gorm:"size:10;not null" json:"date"`
	StartTime string    `gorm:"size:5;not null" json:"start_time"`
	EndTime   string    `gorm:"size:5;not null" json:"end_time"`
	StartsAt  time.Time `gorm:"index" json:"starts_at"`
	EndsAt    time.Time `gorm:"index" json:"ends_at"`

	OrganizerID     string `gorm:"not null;index" json:"organizer_id"`
	MinParticipants int    `gorm:"not null" json:"min_participants"`
	MaxParticipants int    `gorm:"not null" json:"max_participants"`
	IsPublic        bool   `gorm:"not null" json:"is_public"`
	InviteCode      string `gorm:"size:16;not null;uniqueIndex" json:"invite_code"`

	Settings GroupSettings               `gorm:"embedded;embeddedPrefix:setting_" json:"settings"`
	Tags     datatypes.JSONSlice[string] `json:"tags"`

	Status       GroupBookingStatus `gorm:"size:16;not null;index" json:"status"`
	CancelReason string             `json:"cancel_reason,omitempty"`
	ConfirmedAt  *time.Time         `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time         `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`

	// Version increments on every committed mutation of the aggregate.
	Version int64 `gorm:"not null" json:"version"`

	Participants []Participant `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE" json:"participants"`
	Invitations  []Invitation  `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE" json:"invitations,omitempty"`
}

// TableName pins the table name used by the aggregate repository.
func (GroupBooking) TableName() string { return "group_bookings" }
