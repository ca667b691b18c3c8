package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/groupdesk/pkg/errors"
)

// Error taxonomy of the coordination engine. Codes are stable and rendered to clients.
var (
	ErrValidation = apperrors.New("VALIDATION_ERROR", "Invalid group booking request", http.StatusBadRequest)
	// ErrPermissionDenied indicates the actor lacks the role required for the operation.
	ErrPermissionDenied = apperrors.New("PERMISSION_DENIED", "You are not allowed to perform this action", http.StatusForbidden)

	ErrBookingNotFound     = apperrors.New("BOOKING_NOT_FOUND", "Group booking not found", http.StatusNotFound)
	ErrParticipantNotFound = apperrors.New("PARTICIPANT_NOT_FOUND", "Participant not found", http.StatusNotFound)
	ErrInvitationNotFound  = apperrors.New("INVITATION_NOT_FOUND", "Invitation not found", http.StatusNotFound)

	ErrAlreadyMember       = apperrors.New("ALREADY_MEMBER", "You're already a member of this group", http.StatusConflict)
	ErrDuplicateInvitation = apperrors.New("DUPLICATE_INVITATION", "An open invitation already exists for this invitee", http.StatusConflict)
	ErrAlreadyResolved     = apperrors.New("INVITATION_ALREADY_RESOLVED", "This invitation has already been resolved", http.StatusConflict)
	ErrInviteExpired       = apperrors.New("INVITATION_EXPIRED", "This invitation has expired", http.StatusGone)
	// ErrGroupFull is a soft capacity rejection; retrying against the same booking repeats it.
	ErrGroupFull     = apperrors.New("GROUP_FULL", "This group is full", http.StatusConflict)
	ErrBookingClosed = apperrors.New("BOOKING_CLOSED", "This group booking no longer accepts changes", http.StatusConflict)
	ErrRemoved       = apperrors.New("REMOVED", "You were removed from this group by the organizer", http.StatusForbidden)

	// ErrLockTimeout signals contention on the booking; the caller may retry.
	ErrLockTimeout = apperrors.New("LOCK_TIMEOUT", "The group booking is busy, please retry", http.StatusServiceUnavailable)
	// ErrConcurrentModification signals that another process committed first.
	ErrConcurrentModification = apperrors.New("CONCURRENT_MODIFICATION", "The group booking changed concurrently, please retry", http.StatusConflict)
	ErrCodeSpaceExhausted     = apperrors.New("CODE_SPACE_EXHAUSTED", "Unable to issue a unique invite code", http.StatusInternalServerError)
)

func validationError(message string) error {
	return ErrValidation.WithMessage(message)
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}
