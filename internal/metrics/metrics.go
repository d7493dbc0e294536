// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReservationsTotal counts reservation attempts by outcome kind.
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "reservations_total",
			Help:      "Seat reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ScheduleAttemptsTotal counts projection create/update attempts.
	ScheduleAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "schedule_attempts_total",
			Help:      "Projection scheduling attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// LoyaltyCreditFailures counts point credits that failed after the
	// ticket had been committed.
	LoyaltyCreditFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "loyalty_credit_failures_total",
			Help:      "Loyalty point credits that failed after a committed purchase",
		},
	)

	// LoyaltyCreditsRetried counts credits applied by the retry consumer or
	// the startup reconciliation.
	LoyaltyCreditsRetried = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "loyalty_credits_retried_total",
			Help:      "Loyalty credits applied asynchronously",
		},
	)
)
