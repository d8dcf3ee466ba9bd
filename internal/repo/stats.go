// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation), the dataset statistics
// endpoint, and the review-expiry sweeper. Each function is context-aware
// and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/omniguard/go-moderation-backend/internal/domain"
)

// InteractionStats returns aggregate metadata for a contributor's
// interactions: the total number of rows and the maximum UpdatedAt timestamp
// among those rows. An empty contributorID aggregates across everyone.
//
// When there are no rows, the returned count is 0 and maxUpdatedAt is nil.
func InteractionStats(ctx context.Context, db *gorm.DB, contributorID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Interaction{})
	if contributorID != "" {
		q = q.Where("contributor_id = ?", contributorID)
	}

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// DatasetStats is the aggregate breakdown of the stored interaction dataset.
type DatasetStats struct {
	Total            int64 `json:"total"`
	Compliant        int64 `json:"compliant"`
	NonCompliant     int64 `json:"non_compliant"`
	SchemaViolations int64 `json:"schema_violations"`
	PendingReview    int64 `json:"pending_review"`
	AutoVerified     int64 `json:"auto_verified"`
	HumanVerified    int64 `json:"human_verified"`
}

// CollectDatasetStats computes dataset-wide counts in a handful of indexed
// queries. Counts are not a snapshot of a single instant; concurrent writes
// between the queries can skew individual buckets by a row or two, which is
// acceptable for a statistics endpoint.
func CollectDatasetStats(ctx context.Context, db *gorm.DB) (*DatasetStats, error) {
	var s DatasetStats
	m := db.WithContext(ctx).Model(&domain.Interaction{})

	type bucket struct {
		dst  *int64
		cond string
		args []any
	}
	buckets := []bucket{
		{&s.Total, "", nil},
		{&s.Compliant, "compliant = ?", []any{true}},
		{&s.NonCompliant, "compliant = ?", []any{false}},
		{&s.SchemaViolations, "schema_violation = ?", []any{true}},
		{&s.PendingReview, "submitted_for_review = ?", []any{true}},
		{&s.AutoVerified, "verifier = ?", []any{domain.VerifierOmniguard}},
		{&s.HumanVerified, "verifier = ?", []any{domain.VerifierHuman}},
	}
	for _, b := range buckets {
		q := m.Session(&gorm.Session{})
		if b.cond != "" {
			q = q.Where(b.cond, b.args...)
		}
		if err := q.Count(b.dst).Error; err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// OverdueReviews returns interactions that have been awaiting human review
// since before cutoff, oldest first, capped at limit. The sweeper resolves
// these with a system-attributed escalation.
func OverdueReviews(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Interaction, error) {
	var out []domain.Interaction
	err := db.WithContext(ctx).
		Where("submitted_for_review = ? AND updated_at < ?", true, cutoff).
		Order("updated_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
