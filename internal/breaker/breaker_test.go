package breaker

import (
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failed")

func TestNew_OpensAfterThreshold(t *testing.T) {
	cfg := DefaultConfig("test-open")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	cb := New(cfg)

	for range 2 {
		_, err := cb.Execute(func() ([]byte, error) { return nil, errUpstream })
		require.ErrorIs(t, err, errUpstream)
	}

	_, err := cb.Execute(func() ([]byte, error) { return []byte("ok"), nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestNew_IsSuccessfulKeepsBreakerClosed(t *testing.T) {
	errNotFound := errors.New("not found")
	cfg := DefaultConfig("test-successful")
	cfg.FailureThreshold = 1
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, errNotFound)
	}
	cb := New(cfg)

	for range 3 {
		_, err := cb.Execute(func() ([]byte, error) { return nil, errNotFound })
		require.ErrorIs(t, err, errNotFound)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestStateValue(t *testing.T) {
	assert.Equal(t, 0.0, stateValue(gobreaker.StateClosed))
	assert.Equal(t, 1.0, stateValue(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, stateValue(gobreaker.StateOpen))
}
