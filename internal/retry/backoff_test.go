package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func instantBackoff(cfg BackoffConfig) (*Backoff, *[]time.Duration) {
	b := NewBackoff(cfg)
	var waits []time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return b, &waits
}

func TestDefaultBackoffConfig(t *testing.T) {
	cfg := DefaultBackoffConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 0, cfg.MaxAttempts)
	assert.True(t, cfg.Jitter)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	b, waits := instantBackoff(BackoffConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, MaxAttempts: 5})

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits)
}

func TestRetry_ReturnsLastErrorWhenAttemptsRunOut(t *testing.T) {
	b, waits := instantBackoff(BackoffConfig{InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2, MaxAttempts: 3})

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	assert.Len(t, *waits, 2)
}

func TestRetry_UnlimitedStopsOnContext(t *testing.T) {
	b, _ := instantBackoff(BackoffConfig{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := b.Retry(ctx, func() error {
		calls++
		if calls == 10 {
			cancel()
		}
		return errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, calls)
}

func TestRetryWithPredicate_StopsOnPermanentError(t *testing.T) {
	b, waits := instantBackoff(BackoffConfig{InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2, MaxAttempts: 5})
	permanent := errors.New("permanent")

	calls := 0
	err := b.RetryWithPredicate(context.Background(), func() error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestGetNextDelay_CapsAtMax(t *testing.T) {
	b := NewBackoff(BackoffConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond, Multiplier: 2})

	assert.Equal(t, 100*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 400*time.Millisecond, b.GetNextDelay(3))
	assert.Equal(t, 500*time.Millisecond, b.GetNextDelay(4))
	assert.Equal(t, 500*time.Millisecond, b.GetNextDelay(50))
}

func TestGetNextDelay_JitterStaysInBounds(t *testing.T) {
	b := NewBackoff(BackoffConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: true})

	for i := 0; i < 100; i++ {
		d := b.GetNextDelay(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}

func TestSleep_WaitsTheReportedDelay(t *testing.T) {
	b, waits := instantBackoff(BackoffConfig{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		Jitter:       true,
	})

	for attempt := 1; attempt <= 5; attempt++ {
		delay := b.GetNextDelay(attempt)
		require.NoError(t, b.Sleep(context.Background(), delay))
		assert.Equal(t, delay, (*waits)[attempt-1])
	}
}

func TestWait_HonoursCancellation(t *testing.T) {
	b := NewBackoff(BackoffConfig{InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Wait(ctx, 1), context.Canceled)
}

func TestSecureFloat64Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := secureFloat64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
