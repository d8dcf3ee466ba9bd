// Package domain defines the persistence models for moderated interactions
// and contributors. These types are mapped with GORM and form the core data
// layer of the moderation backend.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RuleIDList is a set of violated rule identifiers persisted as a JSON array
// column. Order follows the rule set; duplicates are never stored.
type RuleIDList []string

// Value implements driver.Valuer so GORM can persist the list as JSON text.
func (l RuleIDList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, accepting the JSON text written by Value.
func (l *RuleIDList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("rule id list: unsupported column type %T", src)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// Contains reports whether id is present in the list.
func (l RuleIDList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Interaction is the durable record of one moderated conversation turn and
// its verification lifecycle. The three text segments (instructions, input,
// output) are immutable once the record reaches a terminal state; all other
// mutation happens only through the lifecycle state machine.
//
// Invariants enforced by the state machine:
//   - Compliant is false iff RulesViolated is non-empty or SchemaViolation.
//   - Verifier is "pending" exactly while SubmittedForReview is true.
//   - Action is written once, at the transition that finalizes Verifier.
type Interaction struct {
	ID           string `json:"id"            gorm:"type:char(36);primaryKey"`
	Instructions string `json:"instructions"  gorm:"type:text"`
	Input        string `json:"input"         gorm:"type:text;not null"`
	Output       string `json:"output"        gorm:"type:text"`

	// Compliant is tri-state: nil until the first evaluation completes.
	Compliant       *bool      `json:"compliant"`
	RulesViolated   RuleIDList `json:"rules_violated"   gorm:"type:text;not null;default:'[]'"`
	SchemaViolation bool       `json:"schema_violation" gorm:"not null;default:false"`

	Verifier           Verifier `json:"verifier"             gorm:"type:varchar(16);not null;default:'pending';check:verifier IN ('pending','omniguard','human')"`
	SubmittedForReview bool     `json:"submitted_for_review" gorm:"not null;default:false;index"`
	Action             *Action  `json:"action"               gorm:"type:varchar(16);check:action IN ('allow','block','flag','escalate')"`

	// State is the lifecycle state (see internal/lifecycle). Persisted so a
	// restart resumes parked reviews without re-evaluating anything.
	State string `json:"state" gorm:"type:varchar(24);not null;index"`

	// ContributorID is a weak reference for attribution; the registry owns
	// contributor lifecycle, the core only looks it up.
	ContributorID string `json:"contributor_id,omitempty" gorm:"type:varchar(64);index"`

	// RuleSetVersion records the rule set the verdict was produced against.
	RuleSetVersion string `json:"rule_set_version,omitempty" gorm:"type:varchar(64)"`

	// ReviewedBy and ReviewerNotes carry the human (or system-attributed)
	// reviewer identity and optional analysis notes once resolved.
	ReviewedBy    string `json:"reviewed_by,omitempty"    gorm:"type:varchar(64)"`
	ReviewerNotes string `json:"reviewer_notes,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Interaction.
func (Interaction) TableName() string { return "interactions" }

// Terminal reports whether the record has reached its final, attributed state.
func (i *Interaction) Terminal() bool {
	return i.Verifier == VerifierOmniguard || i.Verifier == VerifierHuman
}

// Turn is the triple of text segments evaluated together: developer/system
// instructions, the user message, and the assistant message. Instructions and
// Output may be empty (a user turn can be evaluated before an assistant reply
// exists); Input is required.
type Turn struct {
	Instructions string `json:"instructions"`
	Input        string `json:"input"`
	Output       string `json:"output"`
}

// Contributor is an attribution identity. The external registry owns its
// lifecycle; the core reads it to resolve weak references on interactions.
type Contributor struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Handle    string    `json:"handle"     gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Contributor.
func (Contributor) TableName() string { return "contributors" }
