// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// IdempotencyRecord maps a previously processed submit request, keyed by
// (contributor_id, key), to the interaction it produced. It lets clients
// retry POST /interactions safely: a replay returns the original interaction
// without creating or re-evaluating anything.
type IdempotencyRecord struct {
	ID            string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ContributorID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_contributor_key,priority:1"`
	Key           string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_contributor_key,priority:2"`
	InteractionID string    `gorm:"type:TEXT NOT NULL"`
	Status        int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt     time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt     time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyRecord) TableName() string { return "idempotency" }
