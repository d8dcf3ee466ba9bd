// Package services – ModerationService
//
// This file implements ModerationService, the application-level component
// that owns interaction intake, automated verification, and reviewer
// decision handling. It validates inputs, snapshots the active rule set,
// runs the evaluator, and drives the lifecycle state machine, persisting
// each completed transition atomically.
//
// Concurrency: every mutation of an interaction happens under that
// interaction's keyed mutex, and the persisted write is additionally guarded
// by the source state, so two racing callers cannot both resolve the same
// record.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include interaction/contributor identifiers where applicable.

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omniguard/go-moderation-backend/internal/domain"
	"github.com/omniguard/go-moderation-backend/internal/evaluator"
	"github.com/omniguard/go-moderation-backend/internal/lifecycle"
	"github.com/omniguard/go-moderation-backend/internal/repo"
	"github.com/omniguard/go-moderation-backend/internal/rules"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultIdempotencyTTL = 24 * time.Hour

// SubmitTurnInput carries one conversation turn into moderation.
type SubmitTurnInput struct {
	ContributorID  string
	IdempotencyKey string
	Turn           domain.Turn
}

// ModerationService coordinates evaluation and the verification state machine.
type ModerationService struct {
	DB    *gorm.DB
	Rules *rules.Registry
	Eval  *evaluator.Evaluator
	Locks *lifecycle.KeyedMutex

	// IdempotencyTTL bounds how long a retried submission replays the
	// original interaction. Zero means defaultIdempotencyTTL.
	IdempotencyTTL time.Duration
}

// SubmitTurn validates and persists a new interaction, evaluates it against
// the active rule set, and advances it as far as policy allows without human
// input. When an Idempotency-Key is supplied and was seen before, the
// previously created interaction is returned with replayed=true and nothing
// new is evaluated or stored.
func (s *ModerationService) SubmitTurn(ctx context.Context, in SubmitTurnInput) (rec *domain.Interaction, replayed bool, err error) {
	tr := otel.Tracer("services/ModerationService")
	ctx, span := tr.Start(ctx, "SubmitTurn",
		trace.WithAttributes(attribute.String("contributor.id", in.ContributorID)),
	)
	defer span.End()

	contributorID := strings.TrimSpace(in.ContributorID)
	if contributorID == "" {
		return nil, false, fmt.Errorf("%w: contributor id required", ErrValidation)
	}
	// The input segment is mandatory; instructions and output may be empty
	// (a user turn can be evaluated before an assistant reply exists). A
	// turn rejected here leaves no trace in the store.
	if strings.TrimSpace(in.Turn.Input) == "" {
		return nil, false, ErrEmptyInput
	}
	if err := s.checkSegmentCaps(in.Turn); err != nil {
		return nil, false, err
	}

	set := s.Rules.Current()
	if set == nil {
		return nil, false, ErrRuleSetUnavailable
	}

	now := time.Now().UTC()
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		if prior, err := repo.GetIdempotency(ctx, s.DB, contributorID, key, now); err == nil {
			orig, gerr := repo.GetInteraction(ctx, s.DB, prior.InteractionID)
			if gerr != nil {
				return nil, false, storeErr(gerr)
			}
			return orig, true, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, false, storeErr(err)
		}
	}

	// The registry only resolves identities; it never mints them. Unknown
	// contributors are a caller error, not a registration request.
	if _, err := repo.GetContributor(ctx, s.DB, contributorID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, ErrContributorNotFound
		}
		return nil, false, storeErr(err)
	}

	rec = &domain.Interaction{
		ID:            uuid.NewString(),
		Instructions:  in.Turn.Instructions,
		Input:         in.Turn.Input,
		Output:        in.Turn.Output,
		State:         lifecycle.StateCreated,
		Verifier:      domain.VerifierPending,
		ContributorID: contributorID,
	}
	span.SetAttributes(attribute.String("interaction.id", rec.ID))

	// Evaluation is pure over the snapshotted set; a retried transaction can
	// reuse the same verdict.
	verdict := s.Eval.Evaluate(ctx, in.Turn, set)

	unlock := s.Locks.Lock(rec.ID)
	defer unlock()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateInteraction(ctx, tx, rec); err != nil {
			return err
		}
		if err := lifecycle.ApplyVerdict(rec, verdict, set); err != nil {
			return err
		}
		if err := repo.UpdateInteractionState(ctx, tx, rec, lifecycle.StateCreated); err != nil {
			return err
		}
		if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, contributorID, key, rec.ID, http.StatusCreated, s.idempotencyTTL()); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost the idempotency race; the whole transaction rolled back, so
		// replay the winner's interaction.
		prior, gerr := repo.GetIdempotency(ctx, s.DB, contributorID, strings.TrimSpace(in.IdempotencyKey), now)
		if gerr != nil {
			return nil, false, storeErr(gerr)
		}
		orig, gerr := repo.GetInteraction(ctx, s.DB, prior.InteractionID)
		if gerr != nil {
			return nil, false, storeErr(gerr)
		}
		return orig, true, nil
	}
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidState) {
			return nil, false, ErrInvalidState
		}
		return nil, false, storeErr(err)
	}
	return rec, false, nil
}

// Get returns a single interaction by id.
func (s *ModerationService) Get(ctx context.Context, id string) (*domain.Interaction, error) {
	tr := otel.Tracer("services/ModerationService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("interaction.id", id)),
	)
	defer span.End()

	in, err := repo.GetInteraction(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInteractionNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return in, nil
}

// ListPage returns paginated interactions, newest first, optionally scoped to
// a contributor, along with the unpaginated total.
func (s *ModerationService) ListPage(ctx context.Context, contributorID string, page, pageSize int) ([]domain.Interaction, int64, error) {
	tr := otel.Tracer("services/ModerationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("contributor.id", contributorID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	page, pageSize = normalizePage(page, pageSize)
	total, err := repo.CountInteractions(ctx, s.DB, contributorID)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	out, err := repo.ListInteractionsPage(ctx, s.DB, contributorID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return out, total, nil
}

// PendingReviews returns the review queue, oldest submission first.
func (s *ModerationService) PendingReviews(ctx context.Context, page, pageSize int) ([]domain.Interaction, error) {
	tr := otel.Tracer("services/ModerationService")
	ctx, span := tr.Start(ctx, "PendingReviews",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize)),
	)
	defer span.End()

	page, pageSize = normalizePage(page, pageSize)
	out, err := repo.ListPendingReview(ctx, s.DB, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// SubmitReview resolves a parked interaction with an external reviewer
// decision. The decision is authoritative and overwrites the automated
// verdict. Resubmitting the identical decision for an already resolved
// record succeeds without modifying anything.
func (s *ModerationService) SubmitReview(ctx context.Context, id string, d lifecycle.Decision) (*domain.Interaction, error) {
	tr := otel.Tracer("services/ModerationService")
	ctx, span := tr.Start(ctx, "SubmitReview",
		trace.WithAttributes(
			attribute.String("interaction.id", id),
			attribute.String("review.action", string(d.Action)),
		),
	)
	defer span.End()

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}

	unlock := s.Locks.Lock(id)
	defer unlock()

	in, err := repo.GetInteraction(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInteractionNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}

	if err := d.Resolve(in); err != nil {
		if errors.Is(err, lifecycle.ErrInvalidState) {
			if sameDecision(in, d) {
				return in, nil
			}
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}

	err = repo.UpdateInteractionState(ctx, s.DB, in, lifecycle.StatePendingReview)
	if errors.Is(err, repo.ErrStaleState) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return in, nil
}

// Cancel is an administrative override: it resolves a parked interaction
// with a decision attributed to the canceller. The record stays
// non-compliant and receives the supplied disposition.
func (s *ModerationService) Cancel(ctx context.Context, id, canceller string, action domain.Action) (*domain.Interaction, error) {
	return s.SubmitReview(ctx, id, lifecycle.Decision{
		Compliant:  false,
		Action:     action,
		ReviewedBy: canceller,
		Notes:      "administrative cancel",
	})
}

// checkSegmentCaps rejects turns whose segments exceed the configured rune
// limits before anything is evaluated or persisted. A cap of zero disables
// that segment's bound.
func (s *ModerationService) checkSegmentCaps(turn domain.Turn) error {
	caps := []struct {
		name string
		text string
		max  int
	}{
		{"instructions", turn.Instructions, s.Eval.MaxInstructionsRunes},
		{"input", turn.Input, s.Eval.MaxInputRunes},
		{"output", turn.Output, s.Eval.MaxOutputRunes},
	}
	for _, c := range caps {
		if c.max > 0 && utf8.RuneCountInString(c.text) > c.max {
			return fmt.Errorf("%w: %s exceeds %d runes", ErrTooLong, c.name, c.max)
		}
	}
	return nil
}

func (s *ModerationService) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return defaultIdempotencyTTL
}

// sameDecision reports whether the stored record already reflects d, which
// makes a retried review a no-op rather than a conflict.
func sameDecision(in *domain.Interaction, d lifecycle.Decision) bool {
	return in.Verifier == domain.VerifierHuman &&
		in.ReviewedBy == d.ReviewedBy &&
		in.Action != nil && *in.Action == d.Action &&
		in.Compliant != nil && *in.Compliant == d.Compliant
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
