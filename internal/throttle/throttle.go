// Package throttle bounds the number of concurrent calls into an external API.
package throttle

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/justestif/band-recommender/internal/metrics"
)

// DefaultPermits is the number of concurrent operations allowed when none is configured.
const DefaultPermits = 3

// Throttler limits concurrent operations to a fixed number of permits shared
// by every caller of the same instance. Waiters are served in FIFO order.
type Throttler struct {
	name    string
	permits int64
	sem     *semaphore.Weighted
}

// New creates a Throttler. A non-positive permit count uses DefaultPermits.
func New(name string, permits int) *Throttler {
	if permits <= 0 {
		permits = DefaultPermits
	}
	return &Throttler{
		name:    name,
		permits: int64(permits),
		sem:     semaphore.NewWeighted(int64(permits)),
	}
}

// Permits returns the configured permit count.
func (t *Throttler) Permits() int {
	return int(t.permits)
}

// Run waits for a permit, runs op and releases the permit however op returns.
// Errors from op are returned unchanged; nothing is retried.
func (t *Throttler) Run(ctx context.Context, op func(context.Context) error) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquiring %s permit: %w", t.name, err)
	}
	gauge := metrics.ThrottleInFlight.WithLabelValues(t.name)
	gauge.Inc()
	defer func() {
		gauge.Dec()
		t.sem.Release(1)
	}()

	return op(ctx)
}

// Do is Run for operations that produce a value.
func Do[T any](ctx context.Context, t *Throttler, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := t.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = op(ctx)
		return err
	})
	return result, err
}
