// Package metrics holds the process-wide prometheus collectors. Counters are
// registered on the default registry and exposed via promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkouts_total",
		Help: "Completed checkouts by transaction type.",
	}, []string{"type"})

	CheckoutRevenue = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_revenue_rupiah_total",
		Help: "Revenue from completed checkouts, in whole rupiah.",
	}, []string{"type"})

	StockMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_stock_movements_total",
		Help: "Stock ledger entries by direction.",
	}, []string{"direction"})

	QueueTicketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_queue_tickets_total",
		Help: "Queue tickets issued.",
	})

	LoyaltyClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_loyalty_claims_total",
		Help: "Loyalty milestone rewards claimed.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)
