// Package metrics registers Splitton's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsCreated counts issued payment intents by provider.
	IntentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitton_intents_created_total",
		Help: "Payment intents issued, by provider.",
	}, []string{"provider"})

	// IntentsConfirmed counts confirmed payment intents by provider.
	IntentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitton_intents_confirmed_total",
		Help: "Payment intents confirmed, by provider.",
	}, []string{"provider"})

	// ReconcileCycles counts completed reconciliation batch sweeps.
	ReconcileCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitton_reconcile_cycles_total",
		Help: "Completed reconciliation cycles over open intents.",
	})

	// ReconcileCycleDuration observes how long a batch sweep takes.
	ReconcileCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "splitton_reconcile_cycle_duration_seconds",
		Help:    "Duration of reconciliation cycles.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// IndexerErrors counts failed chain indexer queries.
	IndexerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitton_indexer_errors_total",
		Help: "Chain indexer queries that failed.",
	})

	// HTTPRequestDuration observes request latency by route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splitton_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)
