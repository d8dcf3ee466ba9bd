// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-only lookups into the contributor
// registry. Contributor lifecycle (creation, renames, removal) is owned by
// the external identity system; the moderation core only resolves references.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/omniguard/go-moderation-backend/internal/domain"
)

// AnonymousContributorID is the identity attributed to submissions that
// carry no contributor reference. The row is provisioned by AutoMigrate so
// anonymous intake works on a fresh database.
const AnonymousContributorID = "anonymous"

// GetContributor fetches a contributor by ID, or ErrNotFound if missing.
func GetContributor(ctx context.Context, db *gorm.DB, id string) (*domain.Contributor, error) {
	var c domain.Contributor
	err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
