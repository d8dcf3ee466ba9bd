package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omniguard/go-moderation-backend/internal/domain"
)

func seedVerdict(t *testing.T, db *gorm.DB, compliant, schema, submitted bool, verifier domain.Verifier) string {
	t.Helper()
	c := compliant
	in := &domain.Interaction{
		ID:                 uuid.NewString(),
		State:              "verified",
		Compliant:          &c,
		SchemaViolation:    schema,
		SubmittedForReview: submitted,
		Verifier:           verifier,
		ContributorID:      "c1",
	}
	if submitted {
		in.State = "pending_review"
	}
	if err := CreateInteraction(context.Background(), db, in); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return in.ID
}

func TestInteractionStats_EmptyAndScoped(t *testing.T) {
	db := newRepoDB(t, &domain.Interaction{})
	ctx := context.Background()

	count, max, err := InteractionStats(ctx, db, "c1")
	if err != nil || count != 0 || max != nil {
		t.Fatalf("empty stats = (%d, %v, %v)", count, max, err)
	}

	seedVerdict(t, db, true, false, false, domain.VerifierOmniguard)
	seedVerdict(t, db, true, false, false, domain.VerifierOmniguard)

	count, max, err = InteractionStats(ctx, db, "c1")
	if err != nil {
		t.Fatalf("InteractionStats: %v", err)
	}
	if count != 2 || max == nil {
		t.Fatalf("stats = (%d, %v)", count, max)
	}
	if max.After(time.Now().UTC().Add(time.Minute)) {
		t.Fatalf("maxUpdatedAt in the future: %v", max)
	}
}

func TestCollectDatasetStats_Buckets(t *testing.T) {
	db := newRepoDB(t, &domain.Interaction{})
	ctx := context.Background()

	seedVerdict(t, db, true, false, false, domain.VerifierOmniguard)
	seedVerdict(t, db, false, false, false, domain.VerifierHuman)
	seedVerdict(t, db, false, true, false, domain.VerifierOmniguard)
	seedVerdict(t, db, false, false, true, domain.VerifierPending)

	s, err := CollectDatasetStats(ctx, db)
	if err != nil {
		t.Fatalf("CollectDatasetStats: %v", err)
	}
	if s.Total != 4 || s.Compliant != 1 || s.NonCompliant != 3 {
		t.Fatalf("compliance buckets wrong: %+v", s)
	}
	if s.SchemaViolations != 1 || s.PendingReview != 1 {
		t.Fatalf("violation buckets wrong: %+v", s)
	}
	if s.AutoVerified != 2 || s.HumanVerified != 1 {
		t.Fatalf("verifier buckets wrong: %+v", s)
	}
}

func TestOverdueReviews_CutoffAndLimit(t *testing.T) {
	db := newRepoDB(t, &domain.Interaction{})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stale1 := seedVerdict(t, db, false, false, true, domain.VerifierPending)
	stale2 := seedVerdict(t, db, false, false, true, domain.VerifierPending)
	fresh := seedVerdict(t, db, false, false, true, domain.VerifierPending)
	db.Model(&domain.Interaction{}).Where("id = ?", stale1).Update("updated_at", base.Add(-2*time.Hour))
	db.Model(&domain.Interaction{}).Where("id = ?", stale2).Update("updated_at", base.Add(-time.Hour))
	db.Model(&domain.Interaction{}).Where("id = ?", fresh).Update("updated_at", base)

	out, err := OverdueReviews(ctx, db, base.Add(-30*time.Minute), 10)
	if err != nil {
		t.Fatalf("OverdueReviews: %v", err)
	}
	if len(out) != 2 || out[0].ID != stale1 || out[1].ID != stale2 {
		t.Fatalf("unexpected overdue set: %+v", out)
	}

	capped, err := OverdueReviews(ctx, db, base.Add(-30*time.Minute), 1)
	if err != nil || len(capped) != 1 || capped[0].ID != stale1 {
		t.Fatalf("limit not applied: %+v err=%v", capped, err)
	}
}
