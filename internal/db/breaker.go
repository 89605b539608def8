package db

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Circuit breaker thresholds for the warehouse connection. Quick recovery
// is preferred over deep backoff since the allocation path degrades
// gracefully to UpstreamUnavailable while the breaker is open.
const (
	breakerMinRequests     = 10
	breakerFailureRatio    = 0.6
	breakerOpenTimeout     = 15 * time.Second
	breakerHalfOpenMaxReqs = 5
	breakerCountInterval   = 10 * time.Second
)

var (
	breakerMetrics     *Metrics
	breakerMetricsOnce sync.Once
)

// Metrics holds the Prometheus collectors shared by every Breaker instance.
type Metrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
}

func initBreakerMetrics() *Metrics {
	breakerMetricsOnce.Do(func() {
		breakerMetrics = &Metrics{
			state: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "allocator_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			}, []string{"service"}),
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "allocator_circuit_breaker_requests_total",
				Help: "Total requests through the circuit breaker, by result",
			}, []string{"service", "result"}),
		}
	})
	return breakerMetrics
}

// BreakerSettings configures the database circuit breaker, sourced from
// config.DatabaseConfig.CircuitBreaker.
type BreakerSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// Breaker wraps warehouse calls so a failing connection pool degrades to
// fast failures instead of piling up blocked goroutines.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	metrics *Metrics
}

// NewBreaker creates a database circuit breaker. A zero-valued settings
// falls back to the package defaults.
func NewBreaker(settings BreakerSettings) *Breaker {
	if settings.MinRequests == 0 {
		settings = BreakerSettings{
			MinRequests:     breakerMinRequests,
			FailureRatio:    breakerFailureRatio,
			OpenTimeout:     breakerOpenTimeout,
			HalfOpenMaxReqs: breakerHalfOpenMaxReqs,
			CountInterval:   breakerCountInterval,
		}
	}

	metrics := initBreakerMetrics()
	b := &Breaker{metrics: metrics}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "database",
		MaxRequests: settings.HalfOpenMaxReqs,
		Interval:    settings.CountInterval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.updateMetric(to)
		},
	})
	b.updateMetric(b.cb.State())

	return b
}

// Execute runs fn through the circuit breaker, tracking success/failure
// counts for the metrics above.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		b.metrics.requests.WithLabelValues("database", "failure").Inc()
		return nil, err
	}
	b.metrics.requests.WithLabelValues("database", "success").Inc()
	return result, nil
}

func (b *Breaker) updateMetric(state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateClosed:
		v = 0
	case gobreaker.StateOpen:
		v = 1
	case gobreaker.StateHalfOpen:
		v = 2
	}
	b.metrics.state.WithLabelValues("database").Set(v)
}
