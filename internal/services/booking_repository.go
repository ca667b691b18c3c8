package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/groupdesk/internal/models"
)

// bookingRepository loads and stores whole booking aggregates.
type bookingRepository struct {
	db *gorm.DB
}

func orderBySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

func (r *bookingRepository) create(ctx context.Context, booking *models.GroupBooking) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(booking).Error
}

// load reads the booking, its participants and its invitations in one read
// transaction, so a save committed by another process is seen whole or not at
// all. Readers never take the aggregate lock.
func (r *bookingRepository) load(ctx context.Context, id string) (*models.GroupBooking, error) {
	var booking models.GroupBooking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.
			Preload("Participants", orderBySeq).
			Preload("Invitations", orderBySeq).
			Where("id = ?", id).
			First(&booking).Error
	}, r.snapshotOptions()...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("group booking: load: %w", err)
	}
	return &booking, nil
}

// snapshotOptions pins the isolation the read transaction needs. SQLite
// transactions already read from a single snapshot and its driver ignores
// isolation levels.
func (r *bookingRepository) snapshotOptions() []*sql.TxOptions {
	if r.db.Dialector != nil && r.db.Dialector.Name() == "sqlite" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

// save writes the aggregate in one transaction. The version guard rejects a
// snapshot that another process committed over in the meantime.
func (r *bookingRepository) save(ctx context.Context, booking *models.GroupBooking, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		previous := booking.Version
		booking.Version = previous + 1
		booking.UpdatedAt = now

		result := tx.Model(&models.GroupBooking{}).
			Where("id = ? AND version = ?", booking.ID, previous).
			Select("*").
			Omit(clause.Associations, "id", "created_at").
			Updates(booking)
		if result.Error != nil {
			booking.Version = previous
			return fmt.Errorf("group booking: save: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			booking.Version = previous
			return ErrConcurrentModification
		}

		if len(booking.Participants) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&booking.Participants).Error; err != nil {
				booking.Version = previous
				return fmt.Errorf("group booking: save participants: %w", err)
			}
		}
		if len(booking.Invitations) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&booking.Invitations).Error; err != nil {
				booking.Version = previous
				return fmt.Errorf("group booking: save invitations: %w", err)
			}
		}
		return nil
	})
}

func (r *bookingRepository) codeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.GroupBooking{}).
		Where("invite_code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *bookingRepository) idByCode(ctx context.Context, code string) (string, error) {
	var booking models.GroupBooking
	err := r.db.WithContext(ctx).
		Select("id").
		Where("invite_code = ?", code).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrBookingNotFound
		}
		return "", fmt.Errorf("group booking: find by code: %w", err)
	}
	return booking.ID, nil
}

func (r *bookingRepository) bookingIDForInvitation(ctx context.Context, invitationID string) (string, error) {
	var invitation models.Invitation
	err := r.db.WithContext(ctx).
		Select("id", "booking_id").
		Where("id = ?", invitationID).
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvitationNotFound
		}
		return "", fmt.Errorf("invitation: find: %w", err)
	}
	return invitation.BookingID, nil
}

func (r *bookingRepository) listForUser(ctx context.Context, userID string) ([]models.GroupBooking, error) {
	memberships := r.db.Model(&models.Participant{}).
		Select("booking_id").
		Where("user_id = ? AND status IN ?", userID, []models.ParticipantStatus{models.ParticipantAccepted, models.ParticipantPending})

	var bookings []models.GroupBooking
	err := r.db.WithContext(ctx).
		Preload("Participants", orderBySeq).
		Where("organizer_id = ? OR id IN (?)", userID, memberships).
		Order("starts_at ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("group booking: list for user: %w", err)
	}
	return bookings, nil
}

// bookingIDsWithInvitations returns bookings holding pending invitations that match where.
// Time arguments must be UTC: sqlite compares stored times as text.
func (r *bookingRepository) bookingIDsWithInvitations(ctx context.Context, where string, args ...any) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("status = ?", models.InvitationPending).
		Where(where, args...).
		Distinct("booking_id").
		Pluck("booking_id", &ids).Error
	return ids, err
}

func (r *bookingRepository) elapsedBookingIDs(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.GroupBooking{}).
		Where("status IN ? AND ends_at <= ?", []models.GroupBookingStatus{models.GroupBookingPending, models.GroupBookingConfirmed}, now).
		Pluck("id", &ids).Error
	return ids, err
}
