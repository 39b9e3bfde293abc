// Package engine abstracts how an Agent Process (§4.8) is executed: as a
// plain goroutine for development and tests, or as a durable Temporal
// workflow in production. Adapted from the teacher's runtime/agent/engine
// package, trimmed to the one shape this module actually schedules --
// running a *process.Process to completion or to a pause point -- instead
// of the teacher's generic multi-workflow/multi-activity registry (this
// module has exactly one long-running unit of work per engine: the Agent
// Process loop).
package engine

import (
	"context"
	"errors"
)

// Sentinel errors a Handle implementation can wrap so callers can branch on
// them without importing a specific backend package (e.g. process/engine/
// temporal's mapSignalError).
var (
	ErrProcessNotFound  = errors.New("engine: process not found")
	ErrProcessCompleted = errors.New("engine: process already completed")
)

// Engine starts an Agent Process under a specific execution backend.
type Engine interface {
	// Start begins running p and returns a Handle for observing and
	// controlling the run. Start does not block until completion; call
	// Handle.Wait for that.
	Start(ctx context.Context, p Runnable) (Handle, error)
}

// Runnable is the minimal view of process.Process an Engine needs, defined
// locally so this package never imports process (mirroring the
// tooldeco.ProcessHandle / planner.ActionRunner import-cycle pattern used
// throughout this module).
type Runnable interface {
	ProcessID() string
	Run(ctx context.Context) error
	Resume(ctx context.Context, value any) error
	Cancel()
	// Waiting reports whether a nil return from Run/Resume means the
	// process paused (WAITING_FOR_INPUT) rather than reached a terminal
	// status. In-memory execution doesn't need this -- its caller holds
	// the *process.Process directly -- but a durable backend that only
	// sees Run/Resume return across a replay boundary does.
	Waiting() bool
}

// Handle lets a caller interact with a running (or completed) Agent Process
// started through an Engine.
type Handle interface {
	// Wait blocks until the underlying Run call returns, either because the
	// process reached a terminal state or because it paused waiting for
	// input. Returns the error Run returned, if any.
	Wait(ctx context.Context) error
	// Resume delivers value to a WAITING_FOR_INPUT process and re-enters its
	// Run loop, returning once that call to Run returns (or pauses again).
	Resume(ctx context.Context, value any) error
	// Cancel requests cooperative cancellation of the running process.
	Cancel()
}
