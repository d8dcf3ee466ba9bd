// Package rules models compliance rules and the immutable, versioned rule
// sets consumed by the evaluator. A Set is built once (from a YAML file or
// programmatically), never mutated afterwards, and freely shared across
// concurrent evaluations. Publishing changed rules means loading a new Set
// with a new version; in-flight evaluations keep the Set they started with.
package rules

import (
	"errors"
	"fmt"

	"github.com/omniguard/go-moderation-backend/internal/domain"
)

// ErrEmptySet is returned when a Set is constructed without any rules.
var ErrEmptySet = errors.New("rule set contains no rules")

// Predicate is the classification capability of a single rule. Matched
// reports whether the turn violates the rule. Implementations must be
// deterministic for a fixed turn and safe for concurrent use; an error means
// the predicate itself could not run, not that the turn is non-compliant.
type Predicate interface {
	Matched(turn domain.Turn) (bool, error)
}

// PredicateFunc adapts a plain function to the Predicate interface. It is the
// extension point for classifier-style rules wired in by the host process.
type PredicateFunc func(turn domain.Turn) (bool, error)

// Matched implements Predicate.
func (f PredicateFunc) Matched(turn domain.Turn) (bool, error) { return f(turn) }

// Rule is one compliance rule. Rules are immutable once published; changing
// one means publishing a new rule set version.
type Rule struct {
	// ID is the unique rule identifier (e.g. "R7").
	ID string
	// Description is the human-readable statement of the rule.
	Description string
	// AutoActionable marks violations severe and unambiguous enough to block
	// automatically without routing the interaction to human review.
	AutoActionable bool
	// Predicate holds the rule's classification logic.
	Predicate Predicate
}

// Set is an immutable, versioned, ordered sequence of rules. Evaluation is
// never short-circuited: every rule in the set runs against a turn so that
// all violations are captured, not only the first.
type Set struct {
	version string
	rules   []Rule
	byID    map[string]*Rule
}

// NewSet builds a Set from an ordered rule slice. It rejects empty sets,
// rules without an ID or predicate, and duplicate identifiers.
func NewSet(version string, rs []Rule) (*Set, error) {
	if len(rs) == 0 {
		return nil, ErrEmptySet
	}
	s := &Set{
		version: version,
		rules:   make([]Rule, len(rs)),
		byID:    make(map[string]*Rule, len(rs)),
	}
	copy(s.rules, rs)
	for i := range s.rules {
		r := &s.rules[i]
		if r.ID == "" {
			return nil, fmt.Errorf("rule at position %d has no id", i)
		}
		if r.Predicate == nil {
			return nil, fmt.Errorf("rule %s has no predicate", r.ID)
		}
		if _, dup := s.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %s", r.ID)
		}
		s.byID[r.ID] = r
	}
	return s, nil
}

// Version returns the identifier of this published set.
func (s *Set) Version() string { return s.version }

// Len returns the number of rules in the set.
func (s *Set) Len() int { return len(s.rules) }

// Rules returns a copy of the ordered rule slice so callers cannot mutate
// the published set.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// AutoActionable reports whether every rule id in ids is marked
// auto-actionable in this set. Any unknown or non-auto-actionable id makes
// the whole violation non-auto-actionable: ambiguity routes to human review.
func (s *Set) AutoActionable(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		r, ok := s.byID[id]
		if !ok || !r.AutoActionable {
			return false
		}
	}
	return true
}
