// Package rules – YAML rule file loading.
//
// Rule files declare an ordered list of rules, each with an id, description,
// an auto_actionable flag, and one predicate kind:
//
//	version: "2026-08-policy"   # optional; defaults to a content hash
//	rules:
//	  - id: R1
//	    description: No credential phishing
//	    auto_actionable: true
//	    kind: keyword
//	    scope: input            # all | instructions | input | output
//	    keywords: ["password dump", "steal credentials"]
//	  - id: R2
//	    description: No card numbers in replies
//	    kind: pattern
//	    scope: output
//	    pattern: '\b(?:\d[ -]?){13,16}\b'
//
// Unknown kinds, invalid patterns, and empty keyword lists fail at load time
// so a bad rule can never reach a live evaluation.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the YAML document shape.
type ruleFile struct {
	Version string     `yaml:"version"`
	Rules   []ruleSpec `yaml:"rules"`
}

// ruleSpec is one declared rule.
type ruleSpec struct {
	ID             string   `yaml:"id"`
	Description    string   `yaml:"description"`
	AutoActionable bool     `yaml:"auto_actionable"`
	Kind           string   `yaml:"kind"`
	Scope          string   `yaml:"scope"`
	Keywords       []string `yaml:"keywords"`
	Pattern        string   `yaml:"pattern"`
}

// LoadFile reads and parses a YAML rule file into an immutable Set. The set
// version is the declared version, or the first 12 hex chars of the file's
// SHA-256 when the document does not name one.
func LoadFile(path string) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse builds a Set from raw YAML rule-file content.
func Parse(raw []byte) (*Set, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}

	version := doc.Version
	if version == "" {
		sum := sha256.Sum256(raw)
		version = hex.EncodeToString(sum[:])[:12]
	}

	rs := make([]Rule, 0, len(doc.Rules))
	for i, spec := range doc.Rules {
		p, err := buildPredicate(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %q (position %d): %w", spec.ID, i, err)
		}
		rs = append(rs, Rule{
			ID:             spec.ID,
			Description:    spec.Description,
			AutoActionable: spec.AutoActionable,
			Predicate:      p,
		})
	}
	return NewSet(version, rs)
}

// buildPredicate constructs the predicate declared by spec.
func buildPredicate(spec ruleSpec) (Predicate, error) {
	scope, err := parseScope(spec.Scope)
	if err != nil {
		return nil, err
	}
	switch spec.Kind {
	case "keyword":
		p := NewKeywordPredicate(spec.Keywords, scope)
		if len(p.keywords) == 0 {
			return nil, fmt.Errorf("keyword rule needs at least one keyword")
		}
		return p, nil
	case "pattern":
		if spec.Pattern == "" {
			return nil, fmt.Errorf("pattern rule needs a pattern")
		}
		return NewPatternPredicate(spec.Pattern, scope)
	default:
		return nil, fmt.Errorf("unknown predicate kind %q", spec.Kind)
	}
}

// parseScope validates the optional scope field; empty means all segments.
func parseScope(s string) (segment, error) {
	switch segment(s) {
	case "", segmentAll:
		return segmentAll, nil
	case segmentInstructions, segmentInput, segmentOutput:
		return segment(s), nil
	default:
		return "", fmt.Errorf("unknown scope %q", s)
	}
}
