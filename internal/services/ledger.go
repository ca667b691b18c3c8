package services

import (
	"time"

	"github.com/charlesng35/groupdesk/internal/models"
)

// The participant ledger is the ordered participant list of a loaded aggregate.
// Functions here are pure; callers hold the booking lock and persist afterwards.

func findParticipant(booking *models.GroupBooking, userID string) *models.Participant {
	for i := range booking.Participants {
		if booking.Participants[i].UserID == userID {
			return &booking.Participants[i]
		}
	}
	return nil
}

func countParticipants(booking *models.GroupBooking, status models.ParticipantStatus) int {
	count := 0
	for i := range booking.Participants {
		if booking.Participants[i].Status == status {
			count++
		}
	}
	return count
}

// acceptedCount is the booking's occupancy.
func acceptedCount(booking *models.GroupBooking) int {
	return countParticipants(booking, models.ParticipantAccepted)
}

func acceptedUserIDs(booking *models.GroupBooking) []string {
	var ids []string
	for i := range booking.Participants {
		if booking.Participants[i].Status == models.ParticipantAccepted {
			ids = append(ids, booking.Participants[i].UserID)
		}
	}
	return ids
}

func isMemberStatus(status models.ParticipantStatus) bool {
	return status == models.ParticipantAccepted || status == models.ParticipantPending
}

// upsertParticipant moves an existing row for userID to status, or appends a new
// row. A user therefore never appears twice in one booking.
func upsertParticipant(booking *models.GroupBooking, userID string, status models.ParticipantStatus, now time.Time, invitedBy, invitationID *string) *models.Participant {
	if existing := findParticipant(booking, userID); existing != nil {
		existing.Status = status
		existing.InvitedAt = now
		existing.RespondedAt = &now
		existing.InvitedBy = invitedBy
		existing.InvitationID = invitationID
		existing.Removed = false
		existing.RemovedBy = nil
		existing.Waitlisted = false
		return existing
	}

	participant := models.Participant{
		BookingID:    booking.ID,
		UserID:       userID,
		Seq:          len(booking.Participants) + 1,
		Status:       status,
		InvitedAt:    now,
		RespondedAt:  &now,
		InvitedBy:    invitedBy,
		InvitationID: invitationID,
	}
	participant.EnsureID()
	booking.Participants = append(booking.Participants, participant)
	return &booking.Participants[len(booking.Participants)-1]
}

// releaseParticipant marks a member row declined; occupancy drops in the same step.
func releaseParticipant(participant *models.Participant, now time.Time, removedBy string) {
	participant.Status = models.ParticipantDeclined
	participant.RespondedAt = &now
	participant.Waitlisted = false
	if removedBy != "" {
		participant.Removed = true
		participant.RemovedBy = &removedBy
	}
}

// maybeConfirm promotes a pending booking once its minimum is met.
func maybeConfirm(booking *models.GroupBooking, now time.Time) bool {
	if booking.Status != models.GroupBookingPending {
		return false
	}
	if acceptedCount(booking) < booking.MinParticipants {
		return false
	}
	booking.Status = models.GroupBookingConfirmed
	booking.ConfirmedAt = &now
	return true
}
