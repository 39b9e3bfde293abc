// Package ratelimit provides admission-control Schedulers for
// tooldeco.EventPublishing (§4.4 step 3). It adapts the teacher's
// AIMD-style AdaptiveRateLimiter (features/model/middleware), scoped to a
// single process instead of a Redis-backed cluster map -- the cluster
// coordination half of that design (goa.design/pulse) has no home in this
// module (see DESIGN.md's dropped-dependency ledger).
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Adaptive is a token-bucket limiter whose effective rate grows (additive
// increase) after sustained success and shrinks (multiplicative decrease)
// when told to back off, e.g. after a provider rate-limit response.
type Adaptive struct {
	mu sync.Mutex

	limiter *rate.Limiter

	current float64
	min     float64
	max     float64
	recover float64

	onBackoff func(newRate float64)
}

// Options configures an Adaptive limiter.
type Options struct {
	// InitialPerSecond is the starting admission rate.
	InitialPerSecond float64
	// MinPerSecond floors the rate after backoffs.
	MinPerSecond float64
	// MaxPerSecond ceils the rate after recoveries.
	MaxPerSecond float64
	// RecoveryRate is the additive per-tick increase applied by Recover.
	RecoveryRate float64
	// Burst caps the token bucket burst size.
	Burst int
	// OnBackoff is called whenever Backoff adjusts the effective rate,
	// primarily for observability.
	OnBackoff func(newRate float64)
}

// NewAdaptive constructs an Adaptive limiter from opts, filling in sane
// defaults for zero-valued fields.
func NewAdaptive(opts Options) *Adaptive {
	if opts.InitialPerSecond <= 0 {
		opts.InitialPerSecond = 5
	}
	if opts.MinPerSecond <= 0 {
		opts.MinPerSecond = 0.5
	}
	if opts.MaxPerSecond <= 0 {
		opts.MaxPerSecond = 50
	}
	if opts.RecoveryRate <= 0 {
		opts.RecoveryRate = 0.5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Adaptive{
		limiter:   rate.NewLimiter(rate.Limit(opts.InitialPerSecond), opts.Burst),
		current:   opts.InitialPerSecond,
		min:       opts.MinPerSecond,
		max:       opts.MaxPerSecond,
		recover:   opts.RecoveryRate,
		onBackoff: opts.OnBackoff,
	}
}

// Delay blocks until admission is granted or ctx is cancelled, mirroring the
// EventPublishing decorator's step 3 "consults a scheduler for an optional
// delay before the call" (§4.4). Delay is cooperative: it returns ctx.Err()
// rather than panicking when the context is cancelled mid-wait.
func (a *Adaptive) Delay(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Backoff multiplicatively reduces the effective rate (AIMD "multiplicative
// decrease"), floored at min. Call this when a tool call reports a
// rate-limit signal from the underlying service.
func (a *Adaptive) Backoff(factor float64) {
	if factor <= 0 || factor >= 1 {
		factor = 0.5
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current *= factor
	if a.current < a.min {
		a.current = a.min
	}
	a.limiter.SetLimit(rate.Limit(a.current))
	if a.onBackoff != nil {
		a.onBackoff(a.current)
	}
}

// Recover additively increases the effective rate (AIMD "additive
// increase"), capped at max. Callers typically call this periodically or
// after N consecutive successes.
func (a *Adaptive) Recover() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current += a.recover
	if a.current > a.max {
		a.current = a.max
	}
	a.limiter.SetLimit(rate.Limit(a.current))
}

// CurrentRate returns the limiter's current admission rate, per second.
func (a *Adaptive) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// NoDelay is a Scheduler that never delays. tooldeco does not install it by
// default; a nil tooldeco.Options.Scheduler skips the delay step entirely.
type NoDelay struct{}

// Delay always returns immediately unless ctx is already done.
func (NoDelay) Delay(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
