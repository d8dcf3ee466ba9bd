// Package domain defines the persistence models for moderated interactions
// and the closed enumerations used by the verification lifecycle. These types
// are mapped with GORM and form the core data layer of the moderation backend.
package domain

// Verifier identifies who produced the final compliance determination for an
// interaction. It stays Pending only while the record is parked for human
// review; once verification completes it is either Omniguard (automated) or
// Human, and never changes again.
type Verifier string

const (
	VerifierPending   Verifier = "pending"
	VerifierOmniguard Verifier = "omniguard"
	VerifierHuman     Verifier = "human"
)

// Valid reports whether v is one of the known verifier values.
func (v Verifier) Valid() bool {
	switch v {
	case VerifierPending, VerifierOmniguard, VerifierHuman:
		return true
	}
	return false
}

// Action is the disposition taken for an interaction. It is set exactly once,
// at the transition that finalizes the verifier.
type Action string

const (
	ActionAllow    Action = "allow"
	ActionBlock    Action = "block"
	ActionFlag     Action = "flag"
	ActionEscalate Action = "escalate"
)

// Valid reports whether a is one of the known action values.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionBlock, ActionFlag, ActionEscalate:
		return true
	}
	return false
}

// ParseAction converts a wire string into an Action, reporting whether the
// value is a member of the closed set.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	return a, a.Valid()
}
