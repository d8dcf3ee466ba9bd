// Package lifecycle implements the verification state machine that owns an
// interaction record from creation through final verification.
//
// The transition functions are pure over the in-memory record: each one sets
// every field of its transition together and the caller persists the whole
// record atomically (or not at all). When persistence fails the in-memory
// advance is discarded by reloading, so a retried transition starts from the
// stored state and the same verdict can be re-applied safely.
//
// States:
//
//	created → auto_evaluated → {compliant | non_compliant}
//	        → {verified | pending_review} ; pending_review → verified
//
// verified is terminal. pending_review is the only long-lived suspension
// point; nothing blocks waiting for it — the record is parked and resumed
// when a reviewer decision arrives as a new event keyed by interaction id.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/omniguard/go-moderation-backend/internal/domain"
	"github.com/omniguard/go-moderation-backend/internal/evaluator"
	"github.com/omniguard/go-moderation-backend/internal/rules"
)

// Lifecycle states persisted on the interaction record.
const (
	StateCreated       = "created"
	StateAutoEvaluated = "auto_evaluated"
	StateCompliant     = "compliant"
	StateNonCompliant  = "non_compliant"
	StatePendingReview = "pending_review"
	StateVerified      = "verified"
)

// ErrInvalidState is returned when a transition is attempted against a record
// that is not in the state the transition requires.
var ErrInvalidState = errors.New("interaction is not in the required state")

// Decision is an external reviewer determination that resolves a parked
// record. Human judgment is authoritative: it overwrites the automated
// compliance flag and disposition.
type Decision struct {
	Compliant  bool
	Action     domain.Action
	ReviewedBy string
	Notes      string
}

// Validate checks the decision fields that the state machine requires.
func (d Decision) Validate() error {
	if !d.Action.Valid() {
		return fmt.Errorf("invalid action %q", d.Action)
	}
	if d.ReviewedBy == "" {
		return errors.New("decision needs a reviewer identity")
	}
	return nil
}

// ApplyVerdict drives a freshly created record through auto-evaluation and as
// far as policy allows without human input. It records the verdict, then:
//
//   - schema violation: terminal block by omniguard, no review
//   - compliant: terminal allow by omniguard
//   - violations, all auto-actionable: terminal block by omniguard
//   - anything else: parked in pending_review with verifier=pending and a
//     provisional flag disposition
//
// The tie-break is strict: a turn matching both auto-actionable and
// non-auto-actionable rules parks for review rather than auto-blocking.
func ApplyVerdict(in *domain.Interaction, v evaluator.Verdict, set *rules.Set) error {
	if in.State != StateCreated {
		return fmt.Errorf("%w: apply verdict in state %q", ErrInvalidState, in.State)
	}

	compliant := v.Compliant && !v.SchemaViolation
	in.Compliant = &compliant
	in.RulesViolated = domain.RuleIDList(v.ViolatedRules)
	in.SchemaViolation = v.SchemaViolation
	in.RuleSetVersion = set.Version()
	in.State = StateAutoEvaluated

	switch {
	case v.SchemaViolation:
		// Malformed turns terminate without review and without invoking
		// rule predicates; RulesViolated stays empty.
		finalizeAuto(in, domain.ActionBlock)

	case compliant:
		in.State = StateCompliant
		finalizeAuto(in, domain.ActionAllow)

	case set.AutoActionable(v.ViolatedRules):
		in.State = StateNonCompliant
		finalizeAuto(in, domain.ActionBlock)

	default:
		in.State = StateNonCompliant
		park(in)
	}
	return nil
}

// Resolve applies an external reviewer decision to a parked record. It fails
// with ErrInvalidState when the record is not awaiting review (including when
// it is already terminal).
func (d Decision) Resolve(in *domain.Interaction) error {
	if in.State != StatePendingReview || in.Terminal() {
		return fmt.Errorf("%w: resolve in state %q", ErrInvalidState, in.State)
	}
	if err := d.Validate(); err != nil {
		return err
	}

	in.Compliant = &d.Compliant
	in.Verifier = domain.VerifierHuman
	a := d.Action
	in.Action = &a
	in.SubmittedForReview = false
	in.ReviewedBy = d.ReviewedBy
	in.ReviewerNotes = d.Notes
	in.State = StateVerified
	return nil
}

// finalizeAuto completes automated verification in the same step that sets
// the disposition, so verifier and action land together.
func finalizeAuto(in *domain.Interaction, action domain.Action) {
	in.Verifier = domain.VerifierOmniguard
	a := action
	in.Action = &a
	in.SubmittedForReview = false
	in.State = StateVerified
}

// park suspends the record awaiting human review. verifier stays pending
// exactly while submitted_for_review is true; the flag disposition here is
// provisional and is overwritten by the resolving decision.
func park(in *domain.Interaction) {
	in.Verifier = domain.VerifierPending
	a := domain.ActionFlag
	in.Action = &a
	in.SubmittedForReview = true
	in.State = StatePendingReview
}
