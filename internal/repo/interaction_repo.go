// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Interaction model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. State machine rules live in the
// lifecycle package; this file only stores and loads what it is handed.
//
// Error semantics:
//   - When an interaction is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - UpdateInteractionState returns ErrStaleState when the row no longer
//     sits in the expected source state, which is how racing transitions
//     lose without corrupting the record.
//   - On other DB errors the raw gorm error is propagated.
//
// Usage:
//
//	// Within a service layer
//	in, err := repo.GetInteraction(ctx, db, id)
//	if errors.Is(err, repo.ErrNotFound) {
//	    // handle missing
//	} else if err != nil {
//	    // handle DB failure
//	}
//
// This repository is designed to be wrapped by a higher-level service
// (see services.ModerationService) which enforces the verification state
// machine, idempotent replay, and per-interaction serialization.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/omniguard/go-moderation-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleState is returned by UpdateInteractionState when the stored row is
// no longer in the state the caller transitioned from.
var ErrStaleState = errors.New("interaction state changed concurrently")

// CreateInteraction inserts a new Interaction row. The caller supplies the
// fully initialized record, including its UUID; CreatedAt/UpdatedAt are set
// to UTC here.
func CreateInteraction(ctx context.Context, db *gorm.DB, in *domain.Interaction) error {
	now := time.Now().UTC()
	in.CreatedAt = now
	in.UpdatedAt = now
	return db.WithContext(ctx).Create(in).Error
}

// GetInteraction fetches a single interaction by ID, or ErrNotFound if the
// record does not exist.
func GetInteraction(ctx context.Context, db *gorm.DB, id string) (*domain.Interaction, error) {
	var in domain.Interaction
	err := db.WithContext(ctx).Where("id = ?", id).First(&in).Error
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// UpdateInteractionState persists a completed transition. Every field the
// transition touched is written in a single UPDATE guarded by the source
// state, so either the whole transition lands or none of it does.
//
// Returns ErrStaleState when zero rows match, i.e. another writer moved the
// record out of fromState first (or the record is gone); the caller should
// reload and re-check.
func UpdateInteractionState(ctx context.Context, db *gorm.DB, in *domain.Interaction, fromState string) error {
	res := db.WithContext(ctx).
		Model(&domain.Interaction{}).
		Where("id = ? AND state = ?", in.ID, fromState).
		Updates(map[string]any{
			"compliant":            in.Compliant,
			"rules_violated":       in.RulesViolated,
			"schema_violation":     in.SchemaViolation,
			"verifier":             in.Verifier,
			"submitted_for_review": in.SubmittedForReview,
			"action":               in.Action,
			"state":                in.State,
			"rule_set_version":     in.RuleSetVersion,
			"reviewed_by":          in.ReviewedBy,
			"reviewer_notes":       in.ReviewerNotes,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// ListInteractionsPage returns a paginated slice of interactions for
// contributorID, ordered by creation time descending. An empty contributorID
// lists across all contributors. Use CountInteractions to obtain the total
// for pagination metadata.
func ListInteractionsPage(ctx context.Context, db *gorm.DB, contributorID string, offset, limit int) ([]domain.Interaction, error) {
	q := db.WithContext(ctx).Model(&domain.Interaction{})
	if contributorID != "" {
		q = q.Where("contributor_id = ?", contributorID)
	}
	var out []domain.Interaction
	err := q.Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountInteractions returns the total number of interactions, optionally
// scoped to a contributor.
func CountInteractions(ctx context.Context, db *gorm.DB, contributorID string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Interaction{})
	if contributorID != "" {
		q = q.Where("contributor_id = ?", contributorID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListPendingReview returns interactions awaiting a reviewer decision,
// oldest first so the queue drains in submission order.
func ListPendingReview(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Interaction, error) {
	var out []domain.Interaction
	err := db.WithContext(ctx).
		Where("submitted_for_review = ?", true).
		Order("updated_at asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
