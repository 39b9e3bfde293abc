package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/agentforge/agentforge/signals"
)

// RetryConfig configures the retry policy wrapping a single LLM attempt
// (§4.3 step 3: "finite attempts, exponential-ish backoff; retried only on
// transient errors and JSON/parse errors"). Adapted from the teacher's
// runtime/a2a/retry.Config.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first.
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter adds up to this fraction of randomness to each backoff.
	Jitter float64
}

// DefaultRetryConfig mirrors the teacher's DefaultConfig, tuned for LLM
// provider calls rather than A2A transport hops.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    250 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

// IsRetryable classifies err per §4.3 step 3: timeouts and transient
// transport/parse errors are retriable; everything else is surfaced
// unwrapped (§4.3 "Edge cases").
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, signals.ErrTimeout) || errors.Is(err, signals.ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// withRetry runs attempt up to cfg.MaxAttempts times, retrying only on
// IsRetryable errors with exponential-ish jittered backoff between tries.
// A non-retriable error returns immediately (§4.3 "surfaced unwrapped").
func withRetry(ctx context.Context, cfg RetryConfig, attempt func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for n := 1; n <= cfg.MaxAttempts; n++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if n >= cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return signals.WithCause("llm attempt interrupted while backing off", signals.ErrInterrupted)
		case <-time.After(backoff(cfg, n)):
		}
	}
	return signals.WithCause("llm call exhausted retry attempts", lastErr)
}

func backoff(cfg RetryConfig, attempt int) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if cfg.MaxBackoff > 0 && d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		d += d * cfg.Jitter * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// withTimeout runs attempt in a detachable unit of work bounded by timeout
// (§4.3 step 3: "if it does not complete within the configured timeout, it
// is cancelled and treated as a retriable error"). A non-positive timeout
// disables the bound.
func withTimeout(ctx context.Context, timeout time.Duration, attempt func(ctx context.Context) error) error {
	if timeout <= 0 {
		return attempt(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- attempt(attemptCtx) }()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return signals.WithCause("llm call interrupted", signals.ErrInterrupted)
		}
		return signals.WithCause("llm attempt exceeded timeout", signals.ErrTimeout)
	}
}
