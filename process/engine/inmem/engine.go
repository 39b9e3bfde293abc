// Package inmem runs an Agent Process as a plain goroutine, grounded on the
// teacher's runtime/agent/engine/inmem goroutine-plus-done-channel pattern.
// Not durable or replay-safe; intended for local development and tests.
package inmem

import (
	"context"
	"errors"
	"sync"

	"github.com/agentforge/agentforge/process/engine"
)

// Engine is a process/engine.Engine that runs each process on its own
// goroutine.
type Engine struct{}

// New returns an in-memory Engine.
func New() *Engine { return &Engine{} }

// Start implements engine.Engine.
func (e *Engine) Start(ctx context.Context, p engine.Runnable) (engine.Handle, error) {
	if p == nil {
		return nil, errors.New("inmem: process is required")
	}
	h := &handle{p: p, done: make(chan struct{})}
	h.run(ctx)
	return h, nil
}

type handle struct {
	p engine.Runnable

	mu   sync.Mutex
	done chan struct{}
	err  error
}

func (h *handle) run(ctx context.Context) {
	go func() {
		err := h.p.Run(ctx)
		h.mu.Lock()
		h.err = err
		close(h.done)
		h.mu.Unlock()
	}()
}

func (h *handle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.err
	}
}

// Resume delivers value to the underlying process and waits for the
// resulting Run call (driven synchronously by process.Process.Resume) to
// return, re-arming a fresh done channel for a subsequent Wait/Resume.
func (h *handle) Resume(ctx context.Context, value any) error {
	h.mu.Lock()
	h.done = make(chan struct{})
	h.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.p.Resume(ctx, value)
	}()

	select {
	case err := <-errCh:
		h.mu.Lock()
		h.err = err
		close(h.done)
		h.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *handle) Cancel() {
	h.p.Cancel()
}
