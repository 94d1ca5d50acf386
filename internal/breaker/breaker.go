// Package breaker builds the circuit breakers wrapped around provider clients.
package breaker

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/justestif/band-recommender/internal/logging"
	"github.com/justestif/band-recommender/internal/metrics"
)

// Config holds circuit breaker settings.
type Config struct {
	Name             string
	MaxRequests      uint32        // requests allowed through while half-open
	Interval         time.Duration // closed-state count reset period
	Timeout          time.Duration // open-state duration before half-open
	FailureThreshold uint32        // consecutive failures that open the breaker

	// IsSuccessful reports whether err should count as a success.
	// Nil means only a nil error is a success.
	IsSuccessful func(err error) bool
}

// DefaultConfig returns settings suitable for a third-party HTTP API.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// New creates a circuit breaker returning raw response bodies.
func New(cfg Config) *gobreaker.CircuitBreaker[[]byte] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: cfg.IsSuccessful,
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](settings)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
