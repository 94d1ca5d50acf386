package throttle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultPermits(t *testing.T) {
	tests := []struct {
		name  string
		input int
		want  int
	}{
		{"positive value", 5, 5},
		{"zero uses default", 0, DefaultPermits},
		{"negative uses default", -2, DefaultPermits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New("test", tt.input).Permits())
		})
	}
}

func TestRun_SinglePermitSerializesCalls(t *testing.T) {
	th := New("serial", 1)

	var running, maxSeen atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := th.Run(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := maxSeen.Load()
					if n <= old || maxSeen.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load(), "more than one operation ran at once")
}

func TestRun_BoundsConcurrency(t *testing.T) {
	th := New("bounded", 3)

	var running, maxSeen atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = th.Run(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := maxSeen.Load()
					if n <= old || maxSeen.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int32(3))
}

func TestRun_ReleasesPermitOnFailure(t *testing.T) {
	th := New("failing", 1)
	boom := errors.New("boom")

	err := th.Run(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	// The permit must be free again, otherwise this would block until the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = th.Run(ctx, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRun_ReleasesPermitOnPanic(t *testing.T) {
	th := New("panicking", 1)

	func() {
		defer func() { _ = recover() }()
		_ = th.Run(context.Background(), func(context.Context) error { panic("boom") })
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, th.Run(ctx, func(context.Context) error { return nil }))
}

func TestRun_CancelledWhileWaiting(t *testing.T) {
	th := New("busy", 1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = th.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var called atomic.Bool
	err := th.Run(ctx, func(context.Context) error {
		called.Store(true)
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called.Load())
}

func TestDo_ReturnsValue(t *testing.T) {
	th := New("values", 2)

	got, err := Do(context.Background(), th, func(context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}
