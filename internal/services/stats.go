package services

import (
	"github.com/charlesng35/groupdesk/internal/models"
)

// InvitationStats breaks invitations of one booking down by status.
type InvitationStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Declined  int `json:"declined"`
	Expired   int `json:"expired"`
	Cancelled int `json:"cancelled"`
	// AcceptanceRate is accepted over invitations the invitee answered or let lapse.
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// GroupBookingStats is the read-only projection of a booking snapshot.
type GroupBookingStats struct {
	BookingID                 string                    `json:"booking_id"`
	Status                    models.GroupBookingStatus `json:"status"`
	MinParticipants           int                       `json:"min_participants"`
	MaxParticipants           int                       `json:"max_participants"`
	CurrentParticipantCount   int                       `json:"current_participant_count"`
	AvailableSpots            int                       `json:"available_spots"`
	PendingApprovalCount      int                       `json:"pending_approval_count"`
	HasMinimumParticipants    bool                      `json:"has_minimum_participants"`
	CanAcceptMoreParticipants bool                      `json:"can_accept_more_participants"`
	ReadyToMeet               bool                      `json:"ready_to_meet"`
	Invitations               InvitationStats           `json:"invitations"`
}

// BuildStats derives occupancy and invitation figures from a booking snapshot.
func BuildStats(booking *models.GroupBooking) GroupBookingStats {
	current := acceptedCount(booking)
	available := booking.MaxParticipants - current
	if available < 0 {
		available = 0
	}

	stats := GroupBookingStats{
		BookingID:               booking.ID,
		Status:                  booking.Status,
		MinParticipants:         booking.MinParticipants,
		MaxParticipants:         booking.MaxParticipants,
		CurrentParticipantCount: current,
		AvailableSpots:          available,
		PendingApprovalCount:    countParticipants(booking, models.ParticipantPending),
		HasMinimumParticipants:  current >= booking.MinParticipants,
	}
	stats.CanAcceptMoreParticipants = current < booking.MaxParticipants && booking.Status.IsOpen()
	stats.ReadyToMeet = booking.Status == models.GroupBookingConfirmed && stats.HasMinimumParticipants
	stats.Invitations = buildInvitationStats(booking.Invitations)
	return stats
}

func buildInvitationStats(invitations []models.Invitation) InvitationStats {
	var stats InvitationStats
	for i := range invitations {
		stats.Total++
		switch invitations[i].Status {
		case models.InvitationPending:
			stats.Pending++
		case models.InvitationAccepted:
			stats.Accepted++
		case models.InvitationDeclined:
			stats.Declined++
		case models.InvitationExpired:
			stats.Expired++
		case models.InvitationCancelled:
			stats.Cancelled++
		}
	}

	if answered := stats.Accepted + stats.Declined + stats.Expired; answered > 0 {
		stats.AcceptanceRate = float64(stats.Accepted) / float64(answered)
	}
	return stats
}
