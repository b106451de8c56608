// Package metrics provides Prometheus metrics for the resource loading
// engine: load rates and durations, cache effectiveness, in-flight work, and
// circuit breaker state. Scrapeable at /metrics; dashboards rely on these
// names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kubeglass"

var (
	// LoadsTotal counts load operations by resource type and outcome
	// (success, error, cancelled, timeout_fallback, not_found).
	LoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_loads_total",
			Help:      "Total number of resource load operations by type and outcome.",
		},
		[]string{"resource_type", "outcome"},
	)

	// LoadDurationSeconds is load latency from submission to result.
	LoadDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resource_load_duration_seconds",
			Help:      "Resource load duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2.5, 10), // 5ms to ~47s
		},
		[]string{"resource_type"},
	)

	// LoadsInFlight is the number of workers currently executing.
	LoadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_loads_in_flight",
			Help:      "Number of load workers currently executing.",
		},
	)

	// CacheHitsTotal counts result cache hits by resource type.
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_cache_hits_total",
			Help:      "Total number of resource cache hits.",
		},
		[]string{"resource_type"},
	)

	// CacheMissesTotal counts result cache misses by resource type.
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_cache_misses_total",
			Help:      "Total number of resource cache misses.",
		},
		[]string{"resource_type"},
	)

	// StaleFallbacksTotal counts degraded reads served from stale cache after
	// a live fetch timed out.
	StaleFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_stale_fallbacks_total",
			Help:      "Total number of loads served from stale cache after a fetch failure.",
		},
		[]string{"resource_type"},
	)

	// BreakerState is the circuit breaker state per cluster (0 closed, 1 open, 2 half-open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per cluster (0=closed, 1=open, 2=half-open).",
		},
		[]string{"cluster"},
	)

	// BreakerTransitionsTotal counts breaker state transitions.
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions.",
		},
		[]string{"cluster", "from", "to"},
	)
)
