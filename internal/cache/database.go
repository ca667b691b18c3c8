package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/groupdesk/internal/models"
)

var errNilDatabaseStore = errors.New("cache: database store not initialised")

// DatabaseStore keeps rate counters in the rate_counters table so that every
// API replica sharing the database sees the same windows.
type DatabaseStore struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, clock: time.Now}
}

// IncrementWithTTL upserts the bucket in one statement: an elapsed window is
// restarted at 1, a live one is bumped. The row is read back in the same
// transaction.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil || s.db == nil {
		return 0, 0, errNilDatabaseStore
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		window = defaultWindow
	}

	now := s.clock().UTC()
	fresh := models.RateCounter{Bucket: key, Count: 1, ExpiresAt: now.Add(window)}
	elapsed := clause.Expr{SQL: "rate_counters.expires_at <= ?", Vars: []any{now}}

	var stored models.RateCounter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "bucket"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "count"}, Value: gorm.Expr(
					"CASE WHEN ? THEN 1 ELSE rate_counters.count + 1 END", elapsed)},
				{Column: clause.Column{Name: "expires_at"}, Value: gorm.Expr(
					"CASE WHEN ? THEN ? ELSE rate_counters.expires_at END", elapsed, fresh.ExpiresAt)},
				{Column: clause.Column{Name: "updated_at"}, Value: now},
			},
		}).Create(&fresh)
		if upsert.Error != nil {
			return upsert.Error
		}
		return tx.Take(&stored, "bucket = ?", key).Error
	})
	if err != nil {
		return 0, 0, err
	}

	ttl := stored.ExpiresAt.Sub(now)
	if ttl < 0 {
		ttl = 0
	}
	return stored.Count, ttl, nil
}

// PurgeExpired deletes counters whose window closed before now and reports how
// many went. Live windows are never touched.
func (s *DatabaseStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, errNilDatabaseStore
	}
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&models.RateCounter{})
	return int(res.RowsAffected), res.Error
}
