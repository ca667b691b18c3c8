package services

import (
	"time"

	"github.com/charlesng35/groupdesk/internal/models"
	"github.com/charlesng35/groupdesk/pkg/metrics"
)

// AdmissionOutcome is the decision reached for a join, accept or approval attempt.
type AdmissionOutcome string

const (
	AdmissionAccepted AdmissionOutcome = "accepted"
	AdmissionPending  AdmissionOutcome = "pending"
	AdmissionRejected AdmissionOutcome = "rejected"
)

// RejectionReason is the stable code carried by a rejected admission.
type RejectionReason string

const (
	ReasonBookingClosed RejectionReason = "BOOKING_CLOSED"
	ReasonAlreadyMember RejectionReason = "ALREADY_MEMBER"
	ReasonGroupFull     RejectionReason = "GROUP_FULL"
	ReasonRemoved       RejectionReason = "REMOVED"
)

type admissionSource string

const (
	sourceCode       admissionSource = "code"
	sourceInvitation admissionSource = "invitation"
	sourceApproval   admissionSource = "approval"
)

// AdmissionResult reports an admission decision and the participant row it produced.
type AdmissionResult struct {
	Outcome     AdmissionOutcome    `json:"outcome"`
	Reason      RejectionReason     `json:"reason,omitempty"`
	Waitlisted  bool                `json:"waitlisted,omitempty"`
	Participant *models.Participant `json:"participant,omitempty"`
}

// Admitted reports whether the user now counts toward occupancy.
func (r AdmissionResult) Admitted() bool {
	return r.Outcome == AdmissionAccepted
}

// Err maps a rejection to its error sentinel; it is nil for accepted or pending results.
func (r AdmissionResult) Err() error {
	if r.Outcome != AdmissionRejected {
		return nil
	}
	switch r.Reason {
	case ReasonBookingClosed:
		return ErrBookingClosed
	case ReasonAlreadyMember:
		return ErrAlreadyMember
	case ReasonGroupFull:
		return ErrGroupFull
	case ReasonRemoved:
		return ErrRemoved
	default:
		return ErrValidation
	}
}

type admissionRequest struct {
	userID       string
	source       admissionSource
	invitedBy    *string
	invitationID *string
	// waitlist turns a full group into a pending row instead of a rejection.
	waitlist bool
	// allowRemoved re-admits a user the organizer removed earlier.
	allowRemoved bool
	now          time.Time
}

func rejected(reason RejectionReason) AdmissionResult {
	return AdmissionResult{Outcome: AdmissionRejected, Reason: reason}
}

// tryAdmit runs the admission algorithm against a locked aggregate. It is the only
// code path that can add a row counted toward occupancy, apart from approve.
func tryAdmit(booking *models.GroupBooking, req admissionRequest) AdmissionResult {
	if !booking.Status.IsOpen() {
		return rejected(ReasonBookingClosed)
	}

	if req.userID == booking.OrganizerID {
		return rejected(ReasonAlreadyMember)
	}
	existing := findParticipant(booking, req.userID)
	if existing != nil && isMemberStatus(existing.Status) {
		return rejected(ReasonAlreadyMember)
	}
	if existing != nil && existing.Removed && !req.allowRemoved {
		return rejected(ReasonRemoved)
	}

	if acceptedCount(booking) >= booking.MaxParticipants {
		if !req.waitlist {
			return rejected(ReasonGroupFull)
		}
		participant := upsertParticipant(booking, req.userID, models.ParticipantPending, req.now, req.invitedBy, req.invitationID)
		participant.Waitlisted = true
		return AdmissionResult{Outcome: AdmissionPending, Waitlisted: true, Participant: participant}
	}

	if booking.Settings.RequireApproval && req.source == sourceCode {
		participant := upsertParticipant(booking, req.userID, models.ParticipantPending, req.now, req.invitedBy, req.invitationID)
		return AdmissionResult{Outcome: AdmissionPending, Participant: participant}
	}

	participant := upsertParticipant(booking, req.userID, models.ParticipantAccepted, req.now, req.invitedBy, req.invitationID)
	return AdmissionResult{Outcome: AdmissionAccepted, Participant: participant}
}

// approve promotes a pending row after re-checking the booking state and capacity.
func approve(booking *models.GroupBooking, userID string, now time.Time) (AdmissionResult, error) {
	if !booking.Status.IsOpen() {
		return rejected(ReasonBookingClosed), nil
	}

	participant := findParticipant(booking, userID)
	if participant == nil || participant.Status != models.ParticipantPending {
		return AdmissionResult{}, ErrParticipantNotFound
	}

	if acceptedCount(booking) >= booking.MaxParticipants {
		return rejected(ReasonGroupFull), nil
	}

	participant.Status = models.ParticipantAccepted
	participant.RespondedAt = &now
	participant.Waitlisted = false
	return AdmissionResult{Outcome: AdmissionAccepted, Participant: participant}, nil
}

func recordAdmission(source admissionSource, result AdmissionResult) {
	metrics.Admissions.WithLabelValues(string(source), string(result.Outcome), string(result.Reason)).Inc()
}
