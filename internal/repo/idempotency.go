// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// IdempotencyRecord model used to implement safe-retry semantics for
// submission endpoints.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omniguard/go-moderation-backend/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (contributor_id, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound. A replayed
// submission resolves through the stored InteractionID instead of creating
// a second interaction.
func GetIdempotency(ctx context.Context, db *gorm.DB, contributorID, key string, now time.Time) (*domain.IdempotencyRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.IdempotencyRecord
	err := db.WithContext(ctx).
		Where("contributor_id = ? AND key = ? AND expires_at > ?", contributorID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
func CreateIdempotency(ctx context.Context, db *gorm.DB, contributorID, key, interactionID string, status int, ttl time.Duration) (*domain.IdempotencyRecord, error) {
	now := time.Now().UTC()
	rec := &domain.IdempotencyRecord{
		ID:            uuid.NewString(),
		ContributorID: contributorID,
		Key:           key,
		InteractionID: interactionID,
		Status:        status,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
