// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests counts cache lookups by key namespace and result (hit, miss).
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandrec_cache_requests_total",
			Help: "Cache lookups by key namespace and result",
		},
		[]string{"namespace", "result"},
	)

	// ThrottleInFlight is the number of operations holding a throttler permit.
	ThrottleInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bandrec_throttle_in_flight",
			Help: "Operations currently holding a throttler permit",
		},
		[]string{"throttler"},
	)

	// ProviderRequests counts external provider calls by provider and outcome.
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandrec_provider_requests_total",
			Help: "External provider requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bandrec_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// StepFailures counts recommendation sub-steps that degraded to no results.
	StepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandrec_recommend_step_failures_total",
			Help: "Recommendation sub-steps that failed and contributed no candidates",
		},
		[]string{"step"},
	)

	// RecommendationDuration tracks end-to-end recommendation latency.
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bandrec_recommend_duration_seconds",
			Help:    "Time to build a recommendation list",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// RecommendationSize tracks the length of returned recommendation lists.
	RecommendationSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bandrec_recommend_size",
			Help:    "Number of bands in returned recommendation lists",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
)
