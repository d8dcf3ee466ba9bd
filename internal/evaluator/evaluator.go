// Package evaluator classifies conversation turns against a rule set.
//
// Evaluate is deterministic and side-effect free with respect to its inputs:
// for a fixed rule set version and a fixed turn it always produces the same
// verdict. Structural (schema) validation runs first and is independent of
// rule predicates; only structurally sound turns reach the rules, and then
// every rule in the set runs so the verdict captures all violations, not just
// the first.
package evaluator

import (
	"context"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/omniguard/go-moderation-backend/internal/domain"
	"github.com/omniguard/go-moderation-backend/internal/rules"
)

// Verdict is the evaluator's output for one turn.
type Verdict struct {
	// Compliant is true iff the turn passed structural validation and
	// violated no rules.
	Compliant bool
	// ViolatedRules lists the ids of all matched rules in rule set order.
	// Always empty when SchemaViolation is true: malformed input and policy
	// breaches are different failure classes and are tracked separately.
	ViolatedRules []string
	// SchemaViolation is true when the turn failed structural validation
	// before any rule predicate ran.
	SchemaViolation bool
	// Unresolved lists rules whose predicate failed to execute. They are
	// excluded from ViolatedRules (one bad rule must not block moderation)
	// and are surfaced here for logging; they are not persisted.
	Unresolved []string
}

// Evaluator classifies turns. The rune caps bound each segment's size during
// structural validation; a cap of zero disables that bound.
type Evaluator struct {
	MaxInstructionsRunes int
	MaxInputRunes        int
	MaxOutputRunes       int
}

// Evaluate classifies turn against set. The caller pins the set for the whole
// call, so a rule set published mid-evaluation never affects the verdict.
func (e *Evaluator) Evaluate(ctx context.Context, turn domain.Turn, set *rules.Set) Verdict {
	tr := otel.Tracer("evaluator")
	_, span := tr.Start(ctx, "Evaluate",
		trace.WithAttributes(
			attribute.String("ruleset.version", set.Version()),
			attribute.Int("ruleset.rules", set.Len()),
		),
	)
	defer span.End()

	if !e.schemaValid(turn) {
		span.SetAttributes(attribute.Bool("verdict.schema_violation", true))
		evaluationsTotal.WithLabelValues(outcomeSchemaViolation).Inc()
		return Verdict{SchemaViolation: true}
	}

	var violated, unresolved []string
	for _, r := range set.Rules() {
		matched, err := r.Predicate.Matched(turn)
		if err != nil {
			// Non-fatal: record the rule as unresolved and keep going.
			log.Warn().Err(err).
				Str("rule_id", r.ID).
				Str("ruleset_version", set.Version()).
				Msg("rule predicate failed; excluding from verdict")
			predicateErrorsTotal.WithLabelValues(r.ID).Inc()
			unresolved = append(unresolved, r.ID)
			continue
		}
		if matched {
			violated = append(violated, r.ID)
			ruleHitsTotal.WithLabelValues(r.ID).Inc()
		}
	}

	v := Verdict{
		Compliant:     len(violated) == 0,
		ViolatedRules: violated,
		Unresolved:    unresolved,
	}
	if v.Compliant {
		evaluationsTotal.WithLabelValues(outcomeCompliant).Inc()
	} else {
		evaluationsTotal.WithLabelValues(outcomeNonCompliant).Inc()
	}
	span.SetAttributes(
		attribute.Bool("verdict.compliant", v.Compliant),
		attribute.Int("verdict.violations", len(violated)),
	)
	return v
}

// schemaValid performs structural validation of the turn: every segment must
// be valid UTF-8 without disallowed control characters, and each segment must
// respect its configured rune cap. Rule predicates never see a turn that
// fails here.
func (e *Evaluator) schemaValid(turn domain.Turn) bool {
	segs := []struct {
		text string
		max  int
	}{
		{turn.Instructions, e.MaxInstructionsRunes},
		{turn.Input, e.MaxInputRunes},
		{turn.Output, e.MaxOutputRunes},
	}
	for _, s := range segs {
		if !utf8.ValidString(s.text) {
			return false
		}
		if s.max > 0 && utf8.RuneCountInString(s.text) > s.max {
			return false
		}
		for _, r := range s.text {
			if r == '\n' || r == '\t' || r == '\r' {
				continue
			}
			if unicode.IsControl(r) {
				return false
			}
		}
	}
	return true
}
