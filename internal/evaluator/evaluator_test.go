package evaluator

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/omniguard/go-moderation-backend/internal/domain"
	"github.com/omniguard/go-moderation-backend/internal/rules"
)

func testSet(t *testing.T, rs []rules.Rule) *rules.Set {
	t.Helper()
	set, err := rules.NewSet("eval-test", rs)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func keywordRule(id, keyword string, auto bool) rules.Rule {
	return rules.Rule{
		ID:             id,
		AutoActionable: auto,
		Predicate: rules.PredicateFunc(func(turn domain.Turn) (bool, error) {
			for _, s := range []string{turn.Instructions, turn.Input, turn.Output} {
				if s != "" && s == keyword {
					return true, nil
				}
			}
			return false, nil
		}),
	}
}

func TestEvaluate_CleanTurn(t *testing.T) {
	set := testSet(t, []rules.Rule{keywordRule("R1", "bad", false)})
	e := &Evaluator{}

	v := e.Evaluate(context.Background(), domain.Turn{
		Instructions: "be helpful",
		Input:        "what's the weather",
		Output:       "sunny",
	}, set)

	if !v.Compliant || v.SchemaViolation || len(v.ViolatedRules) != 0 {
		t.Fatalf("expected clean verdict, got %+v", v)
	}
}

func TestEvaluate_AggregatesAllViolationsInOrder(t *testing.T) {
	set := testSet(t, []rules.Rule{
		keywordRule("R3", "bad", true),
		keywordRule("R5", "never matches", false),
		keywordRule("R7", "bad", false),
	})
	e := &Evaluator{}

	v := e.Evaluate(context.Background(), domain.Turn{Input: "bad"}, set)
	if v.Compliant {
		t.Fatal("expected non-compliant verdict")
	}
	if !reflect.DeepEqual(v.ViolatedRules, []string{"R3", "R7"}) {
		t.Fatalf("violations must aggregate in rule set order, got %v", v.ViolatedRules)
	}
}

func TestEvaluate_SchemaViolationSkipsRules(t *testing.T) {
	ran := false
	set := testSet(t, []rules.Rule{{
		ID: "R1",
		Predicate: rules.PredicateFunc(func(domain.Turn) (bool, error) {
			ran = true
			return true, nil
		}),
	}})
	e := &Evaluator{}

	v := e.Evaluate(context.Background(), domain.Turn{Input: "has a NUL \x00 byte"}, set)
	if !v.SchemaViolation {
		t.Fatal("expected schema violation")
	}
	if len(v.ViolatedRules) != 0 {
		t.Fatalf("schema violations must not carry rule violations, got %v", v.ViolatedRules)
	}
	if ran {
		t.Fatal("rule predicates must not run on schema violations")
	}
}

func TestEvaluate_SchemaRuneCaps(t *testing.T) {
	set := testSet(t, []rules.Rule{keywordRule("R1", "x", false)})
	e := &Evaluator{MaxInputRunes: 5}

	v := e.Evaluate(context.Background(), domain.Turn{Input: "123456"}, set)
	if !v.SchemaViolation {
		t.Fatal("over-cap input must be a schema violation")
	}

	v = e.Evaluate(context.Background(), domain.Turn{Input: "12345"}, set)
	if v.SchemaViolation {
		t.Fatal("at-cap input must pass structural validation")
	}
}

func TestEvaluate_InvalidUTF8IsSchemaViolation(t *testing.T) {
	set := testSet(t, []rules.Rule{keywordRule("R1", "x", false)})
	e := &Evaluator{}

	v := e.Evaluate(context.Background(), domain.Turn{Input: string([]byte{0xff, 0xfe})}, set)
	if !v.SchemaViolation {
		t.Fatal("invalid UTF-8 must be a schema violation")
	}
}

func TestEvaluate_PredicateErrorIsNonFatal(t *testing.T) {
	set := testSet(t, []rules.Rule{
		{ID: "R1", Predicate: rules.PredicateFunc(func(domain.Turn) (bool, error) {
			return false, errors.New("classifier unavailable")
		})},
		keywordRule("R2", "bad", false),
	})
	e := &Evaluator{}

	v := e.Evaluate(context.Background(), domain.Turn{Input: "bad"}, set)
	if v.SchemaViolation {
		t.Fatal("unexpected schema violation")
	}
	if !reflect.DeepEqual(v.ViolatedRules, []string{"R2"}) {
		t.Fatalf("failing rule must be excluded, got %v", v.ViolatedRules)
	}
	if !reflect.DeepEqual(v.Unresolved, []string{"R1"}) {
		t.Fatalf("failing rule must be reported unresolved, got %v", v.Unresolved)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	set := testSet(t, []rules.Rule{
		keywordRule("R3", "bad", true),
		keywordRule("R7", "bad", false),
	})
	e := &Evaluator{}
	turn := domain.Turn{Instructions: "be helpful", Input: "bad"}

	first := e.Evaluate(context.Background(), turn, set)
	for i := 0; i < 10; i++ {
		got := e.Evaluate(context.Background(), turn, set)
		if !reflect.DeepEqual(first, got) {
			t.Fatalf("verdict drifted on call %d: %+v vs %+v", i, first, got)
		}
	}
}

func TestEvaluate_EmptyOutputNeverViolates(t *testing.T) {
	// A rule that would match the empty string if handed one; the predicate
	// only sees non-empty segments by contract of the turn shape used here.
	set := testSet(t, []rules.Rule{{
		ID: "R1",
		Predicate: rules.PredicateFunc(func(turn domain.Turn) (bool, error) {
			return turn.Output != "" && len(turn.Output) < 3, nil
		}),
	}})
	e := &Evaluator{}

	v := e.Evaluate(context.Background(), domain.Turn{Input: "hi"}, set)
	if !v.Compliant {
		t.Fatalf("empty output must not trigger a violation, got %+v", v)
	}
}
