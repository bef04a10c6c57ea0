package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/common/logging"
)

func TestBreaker(t *testing.T) {
	logger := logging.GetGlobalLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := New("test-basic", Config{MaxFailures: 2, Timeout: 100 * time.Millisecond, HalfOpenRequests: 1}, logger)
		assert.Equal(t, StateClosed, cb.State())

		err := cb.Execute(context.Background(), func() error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("opens after consecutive failures", func(t *testing.T) {
		cb := New("test-failures", Config{MaxFailures: 3, Timeout: 100 * time.Millisecond, HalfOpenRequests: 1}, logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return fmt.Errorf("failure %d", i)
			})
			assert.Error(t, err)
		}
		assert.Equal(t, StateOpen, cb.State())
		assert.True(t, cb.IsOpen())

		err := cb.Execute(context.Background(), func() error {
			t.Fatal("must not be called while open")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOpen))
	})

	t.Run("half-open success closes the breaker", func(t *testing.T) {
		cb := New("test-half-open", Config{MaxFailures: 2, Timeout: 50 * time.Millisecond, HalfOpenRequests: 1}, logger)

		for i := 0; i < 2; i++ {
			cb.Execute(context.Background(), func() error { return fmt.Errorf("failure") })
		}
		assert.Equal(t, StateOpen, cb.State())

		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		err := cb.Execute(context.Background(), func() error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("caller errors do not trip the breaker", func(t *testing.T) {
		cb := New("test-validation", Config{MaxFailures: 2, Timeout: time.Second, HalfOpenRequests: 1}, logger)

		for i := 0; i < 5; i++ {
			err := cb.Execute(context.Background(), func() error {
				return apperrors.SerializationError("products:1", fmt.Errorf("bad json"))
			})
			assert.Error(t, err)
		}
		assert.Equal(t, StateClosed, cb.State())

		for i := 0; i < 2; i++ {
			cb.Execute(context.Background(), func() error {
				return apperrors.TransportError("get", fmt.Errorf("connection refused"))
			})
		}
		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		cb := New("test-ctx", DefaultConfig(), logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := cb.Execute(ctx, func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
		assert.Equal(t, uint32(0), cb.Stats().Requests)
	})

	t.Run("cancellation during a call does not trip the breaker", func(t *testing.T) {
		cb := New("test-cancel", Config{MaxFailures: 2, Timeout: time.Second, HalfOpenRequests: 1}, logger)

		for i := 0; i < 5; i++ {
			ctx, cancel := context.WithCancel(context.Background())
			err := cb.Execute(ctx, func() error {
				cancel()
				return apperrors.TransportError("get", ctx.Err())
			})
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, uint32(0), cb.Stats().Failures)

		for i := 0; i < 2; i++ {
			cb.Execute(context.Background(), func() error { return context.DeadlineExceeded })
		}
		assert.Equal(t, StateOpen, cb.State(), "timeouts still count as failures")
	})

	t.Run("stats", func(t *testing.T) {
		cb := New("test-stats", Config{MaxFailures: 10, Timeout: time.Second, HalfOpenRequests: 1}, logger)

		for i := 0; i < 3; i++ {
			cb.Execute(context.Background(), func() error { return nil })
		}
		for i := 0; i < 2; i++ {
			cb.Execute(context.Background(), func() error { return fmt.Errorf("failure") })
		}

		stats := cb.Stats()
		assert.Equal(t, "test-stats", stats.Name)
		assert.Equal(t, "closed", stats.State)
		assert.Equal(t, uint32(5), stats.Requests)
		assert.Equal(t, uint32(2), stats.Failures)
		assert.Equal(t, uint32(2), stats.ConsecutiveFailures)
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := New("test-invalid", Config{}, logger)
		assert.Equal(t, DefaultConfig(), cb.config)
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
