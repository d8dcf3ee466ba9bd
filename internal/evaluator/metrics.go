// Package evaluator – Prometheus instrumentation.
//
// Label cardinality stays bounded: outcomes form a closed three-value set and
// rule ids are bounded by the published rule set.
package evaluator

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeCompliant       = "compliant"
	outcomeNonCompliant    = "non_compliant"
	outcomeSchemaViolation = "schema_violation"
)

var (
	// evaluationsTotal counts completed evaluations by outcome.
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_evaluations_total",
			Help: "Total turn evaluations by outcome.",
		},
		[]string{"outcome"},
	)

	// ruleHitsTotal counts rule violations by rule id.
	ruleHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_rule_hits_total",
			Help: "Total rule violations detected, by rule id.",
		},
		[]string{"rule_id"},
	)

	// predicateErrorsTotal counts predicate execution failures by rule id.
	predicateErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_predicate_errors_total",
			Help: "Total rule predicate execution failures, by rule id.",
		},
		[]string{"rule_id"},
	)
)

func init() {
	prometheus.MustRegister(evaluationsTotal, ruleHitsTotal, predicateErrorsTotal)
}
