package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/groupdesk/internal/models"
)

// AutoMigrate creates or updates the schema of the group booking aggregate and
// the shared rate limit counters.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GroupBooking{},
		&models.Participant{},
		&models.Invitation{},
		&models.RateCounter{},
	)
}
