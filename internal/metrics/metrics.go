package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	debitOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harmoney",
			Name:      "debit_outcomes_total",
			Help:      "Settled purchase debits by category and final status.",
		},
		[]string{"category", "status"},
	)

	creditOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harmoney",
			Name:      "inbound_credits_total",
			Help:      "Inbound transfer notifications by outcome.",
		},
		[]string{"outcome"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harmoney",
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment rail calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "outcome"},
	)

	sweepResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harmoney",
			Name:      "reconcile_resolutions_total",
			Help:      "Debits resolved by the reconciliation sweep, by resulting status.",
		},
		[]string{"status"},
	)

	rateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "harmoney",
			Name:      "purchase_rate_limited_total",
			Help:      "Purchase requests rejected by the per-user rate limit.",
		},
	)
)

// DebitFinalized records the terminal status of a purchase debit.
func DebitFinalized(category, status string) {
	debitOutcomes.WithLabelValues(category, status).Inc()
}

// CreditProcessed records an inbound notification outcome: applied, duplicate,
// unattributed or malformed.
func CreditProcessed(outcome string) {
	creditOutcomes.WithLabelValues(outcome).Inc()
}

// GatewayCall observes a payment rail call started at start.
func GatewayCall(operation, outcome string, start time.Time) {
	gatewayDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// SweepResolved records a debit status set by the reconciliation sweep.
func SweepResolved(status string) {
	sweepResolutions.WithLabelValues(status).Inc()
}

// PurchaseRateLimited counts a rejected purchase.
func PurchaseRateLimited() {
	rateLimited.Inc()
}
