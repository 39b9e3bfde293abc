package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/signals"
)

func TestIsRetryableClassifiesTimeoutAndTransientAsRetriable(t *testing.T) {
	assert.True(t, IsRetryable(signals.WithCause("x", signals.ErrTimeout)))
	assert.True(t, IsRetryable(signals.WithCause("x", signals.ErrTransient)))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
}

func TestIsRetryableRejectsOrdinaryAndCancelledErrors(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(nil))
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, BackoffMultiplier: 1}
	attempts := 0
	err := withRetry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return signals.WithCause("transient", signals.ErrTransient)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsImmediatelyOnNonRetriableError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond}
	attempts := 0
	fatal := errors.New("fatal")
	err := withRetry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return fatal
	})
	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryExhaustsAttemptsAndWrapsLastError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}
	err := withRetry(context.Background(), cfg, func(ctx context.Context) error {
		return signals.WithCause("still transient", signals.ErrTransient)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, signals.ErrTransient)
}

func TestWithTimeoutCancelsSlowAttempt(t *testing.T) {
	err := withTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	assert.ErrorIs(t, err, signals.ErrTimeout)
}

func TestWithTimeoutDisabledWhenNonPositive(t *testing.T) {
	called := false
	err := withTimeout(context.Background(), 0, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
