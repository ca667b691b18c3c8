package models

import "time"

// RateCounter is a fixed-window request counter kept in the primary database so
// several API instances share one view of a caller's budget.
type RateCounter struct {
	Bucket    string    `gorm:"primaryKey;size:255"`
	Count     int64     `gorm:"not null;default:0"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name.
func (RateCounter) TableName() string {
	return "rate_counters"
}
