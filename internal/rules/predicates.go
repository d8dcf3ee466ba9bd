// Package rules – built-in predicate kinds.
//
// This file implements the predicate variants that can be declared in a rule
// file: keyword matching (Unicode case-fold insensitive) and regular
// expression matching. Both are deterministic and evaluate the full turn;
// an empty assistant output never matches on its own.
package rules

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/omniguard/go-moderation-backend/internal/domain"
)

// segment selects which turn segments a predicate inspects.
type segment string

const (
	segmentAll          segment = "all"
	segmentInstructions segment = "instructions"
	segmentInput        segment = "input"
	segmentOutput       segment = "output"
)

// segmentsOf returns the selected non-empty segment texts of a turn. Empty
// segments are skipped so that, e.g., an output-scoped rule can never fire
// before an assistant reply exists.
func segmentsOf(turn domain.Turn, seg segment) []string {
	pick := func(vals ...string) []string {
		out := vals[:0]
		for _, v := range vals {
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	switch seg {
	case segmentInstructions:
		return pick(turn.Instructions)
	case segmentInput:
		return pick(turn.Input)
	case segmentOutput:
		return pick(turn.Output)
	default:
		return pick(turn.Instructions, turn.Input, turn.Output)
	}
}

// foldCaser performs Unicode case folding for caseless keyword comparison.
// cases.Fold is not safe for concurrent use, so each call takes a fresh value.
func fold(s string) string { return cases.Fold().String(s) }

// KeywordPredicate matches when any of its case-folded keywords occurs as a
// substring of a selected turn segment.
type KeywordPredicate struct {
	keywords []string
	scope    segment
}

// NewKeywordPredicate folds and stores the given keywords. Blank keywords are
// dropped; at least one non-blank keyword is required by the loader.
func NewKeywordPredicate(keywords []string, scope segment) *KeywordPredicate {
	p := &KeywordPredicate{scope: scope}
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			p.keywords = append(p.keywords, fold(k))
		}
	}
	return p
}

// Matched implements Predicate.
func (p *KeywordPredicate) Matched(turn domain.Turn) (bool, error) {
	for _, text := range segmentsOf(turn, p.scope) {
		folded := fold(text)
		for _, k := range p.keywords {
			if strings.Contains(folded, k) {
				return true, nil
			}
		}
	}
	return false, nil
}

// PatternPredicate matches when its compiled expression matches a selected
// turn segment. The pattern is compiled at load time so a bad expression
// fails rule publication, never a live evaluation.
type PatternPredicate struct {
	re    *regexp.Regexp
	scope segment
}

// NewPatternPredicate compiles expr, returning an error for invalid syntax.
func NewPatternPredicate(expr string, scope segment) (*PatternPredicate, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &PatternPredicate{re: re, scope: scope}, nil
}

// Matched implements Predicate.
func (p *PatternPredicate) Matched(turn domain.Turn) (bool, error) {
	for _, text := range segmentsOf(turn, p.scope) {
		if p.re.MatchString(text) {
			return true, nil
		}
	}
	return false, nil
}
