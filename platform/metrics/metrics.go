// Package metrics exposes Prometheus collectors for the cassette workflow.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CassetteTransitions counts state machine transitions by target status
	// and outcome. Source status is omitted to keep cardinality bounded.
	CassetteTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cassette_transitions_total",
			Help: "Total number of cassette status transitions attempted.",
		},
		[]string{"target", "outcome"},
	)

	// AvailabilityChecks counts availability guard evaluations by result.
	AvailabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cassette_availability_checks_total",
			Help: "Total number of availability guard evaluations.",
		},
		[]string{"result"},
	)

	// AttributionResults counts attribution backfill outcomes per repair event.
	AttributionResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repair_attribution_results_total",
			Help: "Total number of repair attribution outcomes.",
		},
		[]string{"outcome"},
	)

	// BackfillDuration records the duration of full attribution backfill runs.
	BackfillDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "repair_attribution_backfill_duration_seconds",
			Help:    "Duration of attribution backfill runs in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Transition outcome label values.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Attribution outcome label values.
const (
	OutcomeAttributed     = "attributed"
	OutcomeUnattributable = "unattributable"
	OutcomeErrored        = "errored"
)
