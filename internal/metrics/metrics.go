// Package metrics exposes Prometheus collectors for the credit core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "creditcore"

// Outcome labels shared by the counters below.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	// BalanceAdjustments counts AdjustBalance calls by ledger kind and outcome.
	BalanceAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_adjustments_total",
			Help:      "Balance adjustments by ledger kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// WebhookEvents counts processed payment notifications by outcome.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	// ReferralRedemptions counts redemption attempts by result.
	ReferralRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_redemptions_total",
			Help:      "Referral redemption attempts by result.",
		},
		[]string{"result"},
	)

	// ReferralPayouts counts referrer payouts actually written.
	ReferralPayouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_payouts_total",
			Help:      "Referrer payouts credited.",
		},
	)

	// ReconcileMismatches reports the mismatch count of the latest reconciliation run.
	ReconcileMismatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_mismatched_accounts",
			Help:      "Accounts whose cached balance differed from the ledger in the last run.",
		},
	)

	// ReconcileLastRun is the unix time of the latest completed reconciliation.
	ReconcileLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_last_run_timestamp_seconds",
			Help:      "Completion time of the last reconciliation run.",
		},
	)

	// HTTPRequestDuration observes handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP handler latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveHTTP records one request.
func ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
