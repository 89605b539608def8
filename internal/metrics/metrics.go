// Package metrics defines the Prometheus collectors exported by the
// allocation service and small helpers for recording them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Allocation algorithm outcome labels (bounded set).
const (
	OutcomeSampled  = "sampled"
	OutcomeFallback = "fallback"
	OutcomeUniform  = "uniform"
)

var (
	// HTTPRequests counts completed HTTP requests by route pattern and
	// status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_http_requests_total",
		Help: "Total number of HTTP requests by method, path and status code",
	}, []string{"method", "path", "status_code"})

	// HTTPRequestDuration observes request latency in milliseconds.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocator_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"method", "path", "status_code"})

	// AllocationDuration observes end-to-end allocation computation time,
	// from aggregate fetch through persistence.
	AllocationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocator_allocation_duration_ms",
		Help:    "Allocation computation duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
	})

	// AllocationOutcomes counts allocation runs by the branch of the
	// algorithm that produced the final split.
	AllocationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_allocation_outcomes_total",
		Help: "Total allocation computations by outcome (sampled, fallback, uniform)",
	}, []string{"outcome"})

	// AllocationWindowExpansions counts how often the aggregation window
	// was widened to the maximum because not every variant cleared the
	// minimum-impressions threshold.
	AllocationWindowExpansions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocator_allocation_window_expansions_total",
		Help: "Total allocation computations that widened past the default window",
	})

	// AllocationPersistFailures counts SaveAllocation failures that were
	// logged but did not fail the request.
	AllocationPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocator_allocation_persist_failures_total",
		Help: "Total allocation computations whose history write failed",
	})

	// RateLimitRejections counts requests rejected by the rate limiter,
	// by normalized endpoint pattern.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_rate_limit_rejections_total",
		Help: "Total requests rejected by the rate limiter, by endpoint pattern",
	}, []string{"pattern"})

	// DatabaseQueryDuration observes storage-layer query duration.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocator_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query"})

	// Errors counts application errors by apperr.Kind and component.
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_errors_total",
		Help: "Total number of errors by kind and component",
	}, []string{"kind", "component"})
)

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, path, statusCode string, durationMs float64) {
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
}

// RecordAllocation records one allocation computation's duration and the
// branch of the algorithm that produced it.
func RecordAllocation(outcome string, durationMs float64, windowExpanded bool) {
	AllocationDuration.Observe(durationMs)
	AllocationOutcomes.WithLabelValues(outcome).Inc()
	if windowExpanded {
		AllocationWindowExpansions.Inc()
	}
}

// RecordAllocationPersistFailure records a failed allocation-history write.
func RecordAllocationPersistFailure() {
	AllocationPersistFailures.Inc()
}

// RecordRateLimitRejection records a rate-limited request for pattern.
func RecordRateLimitRejection(pattern string) {
	RateLimitRejections.WithLabelValues(pattern).Inc()
}

// RecordDatabaseQuery records a storage-layer query's duration.
func RecordDatabaseQuery(query string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(query).Observe(durationMs)
}

// RecordError records an application error by kind and originating
// component.
func RecordError(kind, component string) {
	Errors.WithLabelValues(kind, component).Inc()
}
