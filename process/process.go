// Package process implements the Agent Process state machine of §4.8: the
// single-threaded RUNNING -> {COMPLETED, FAILED, STUCK, WAITING_FOR_INPUT,
// CANCELLED} loop that drives a Planner and Action Dispatcher against one
// Blackboard.
package process

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/eventbus"
	"github.com/agentforge/agentforge/planner"
	"github.com/agentforge/agentforge/signals"
)

// Status is one of the states of §4.8's transition table.
type Status string

const (
	StatusRunning         Status = "RUNNING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
	StatusStuck           Status = "STUCK"
	StatusWaitingForInput Status = "WAITING_FOR_INPUT"
	StatusCancelled       Status = "CANCELLED"
)

// Dispatcher is the minimal view of package dispatcher a Process needs,
// defined locally (mirroring tooldeco.ProcessHandle / planner.ActionRunner)
// so process never imports dispatcher -- dispatcher instead depends on
// planner and blackboard only, and the wiring happens at construction time
// in the caller (e.g. the example wiring package).
type Dispatcher interface {
	Dispatch(ctx context.Context, processID string, bb *blackboard.Blackboard, action planner.Action) error
}

// Budget bounds a Process's total resource consumption (§4.8 "Budget
// counters"). A zero value in any field means that dimension is unbounded.
type Budget struct {
	MaxTokens    int
	MaxWallClock time.Duration
	MaxActions   int
}

// Usage tracks a Process's cumulative spend against its Budget.
type Usage struct {
	Tokens      int
	ActionCount int
	Started     time.Time
}

// FailureReason names why a Process transitioned to FAILED, surfaced on
// Process.Reason().
type FailureReason string

const (
	ReasonBudgetTokens    FailureReason = "budget_tokens_exceeded"
	ReasonBudgetWallClock FailureReason = "budget_wall_clock_exceeded"
	ReasonBudgetActions   FailureReason = "budget_action_count_exceeded"
	ReasonCancelled       FailureReason = "cancelled"
	ReasonError           FailureReason = "error"
)

// Process is one running instance of an agent definition: a Blackboard, a
// Planner, a Dispatcher, event dispatch, and the status/budget bookkeeping of
// §4.8/§5. A Process must not be shared across goroutines except via its
// Cancel and Resume methods, which are safe for concurrent use.
type Process struct {
	id       string
	bb       *blackboard.Blackboard
	plan     planner.Planner
	dispatch Dispatcher
	bus      eventbus.Bus
	budget   Budget
	logger   *slog.Logger

	mu        sync.Mutex
	status    Status
	reason    FailureReason
	usage     Usage
	history   []string
	cancel    chan struct{}
	cancelled bool

	// waitingFor is the binding name a WAITING_FOR_INPUT process will resume
	// into, captured from the UserInputRequired signal that paused it.
	waitingFor string
}

// ProcessID implements tooldeco.ProcessHandle.
func (p *Process) ProcessID() string { return p.id }

// New constructs a Process in state RUNNING (§3 "constructed -> RUNNING").
func New(id string, bb *blackboard.Blackboard, plan planner.Planner, dispatch Dispatcher, bus eventbus.Bus, budget Budget, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Process{
		id:       id,
		bb:       bb,
		plan:     plan,
		dispatch: dispatch,
		bus:      bus,
		budget:   budget,
		logger:   logger,
		status:   StatusRunning,
		cancel:   make(chan struct{}),
		usage:    Usage{Started: time.Now()},
	}
	p.publish(context.Background(), eventbus.Event{Kind: eventbus.ProcessCreated, ProcessID: id})
	return p
}

// Status returns the Process's current state.
func (p *Process) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Waiting reports whether the process is currently paused in
// WAITING_FOR_INPUT, i.e. whether a nil return from Run means "paused" as
// opposed to "reached a terminal status". Satisfies engine.Runnable for
// durable-execution backends that must tell the two apart across a replay
// boundary.
func (p *Process) Waiting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status == StatusWaitingForInput
}

// Reason returns why a FAILED process failed; empty for any other status.
func (p *Process) Reason() FailureReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reason
}

// History returns the names of actions dispatched so far, in order.
func (p *Process) History() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.history))
	copy(out, p.history)
	return out
}

// Blackboard returns the Process's blackboard.
func (p *Process) Blackboard() *blackboard.Blackboard { return p.bb }

// Cancel requests cooperative cancellation (§5 "Cancellation"). Safe to call
// more than once or concurrently with Run.
func (p *Process) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return
	}
	p.cancelled = true
	close(p.cancel)
}

// Run drives the process loop until it reaches a terminal status
// (COMPLETED, FAILED, STUCK, CANCELLED) or a WAITING_FOR_INPUT pause, in
// which case Run returns nil and the caller must later call Resume.
func (p *Process) Run(ctx context.Context) error {
	for {
		select {
		case <-p.cancel:
			return p.transitionFailed(ctx, ReasonCancelled, signals.ErrInterrupted)
		case <-ctx.Done():
			return p.transitionFailed(ctx, ReasonCancelled, ctx.Err())
		default:
		}

		if reason, err := p.checkBudget(); err != nil {
			return p.transitionFailed(ctx, reason, err)
		}

		step, ok, err := p.plan.Plan(p.bb)
		if err != nil {
			if signals.IsControlFlow(err) {
				if handled, herr := p.handleControlFlow(ctx, err); handled {
					if herr != nil || p.Waiting() {
						return herr
					}
					continue
				}
			}
			if isNoPlanFound(err) {
				return p.transitionStuck(ctx)
			}
			return p.transitionFailed(ctx, ReasonError, err)
		}
		if !ok {
			return p.transitionCompleted(ctx, step)
		}

		err = p.dispatch.Dispatch(ctx, p.id, p.bb, step)
		p.recordAction(step.Name)
		if err != nil {
			if signals.IsControlFlow(err) {
				handled, herr := p.handleControlFlow(ctx, err)
				if handled {
					if herr != nil || p.Waiting() {
						return herr
					}
					continue
				}
			}
			return p.transitionFailed(ctx, ReasonError, err)
		}
	}
}

// handleControlFlow interprets a ReplanRequested or UserInputRequired signal
// per §4.8's transition table. It returns handled=true if err was one of the
// two designated signals (and thus already acted upon); the caller should
// `continue` its loop on (true, nil) unless the process is now waiting for
// input, and return on (true, non-nil) or on a pause.
func (p *Process) handleControlFlow(ctx context.Context, err error) (bool, error) {
	var replan *signals.ReplanRequested
	if errors.As(err, &replan) {
		p.publish(ctx, eventbus.Event{Kind: eventbus.ReplanRequested, ProcessID: p.id, Reason: replan.Reason})
		return true, nil
	}
	var input *signals.UserInputRequired
	if errors.As(err, &input) {
		return true, p.transitionWaiting(ctx, input)
	}
	return false, nil
}

func (p *Process) recordAction(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, name)
	p.usage.ActionCount++
}

func (p *Process) checkBudget() (FailureReason, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.budget.MaxTokens > 0 && p.usage.Tokens > p.budget.MaxTokens {
		return ReasonBudgetTokens, signals.Newf("token budget exceeded: %d > %d", p.usage.Tokens, p.budget.MaxTokens)
	}
	if p.budget.MaxWallClock > 0 && time.Since(p.usage.Started) > p.budget.MaxWallClock {
		return ReasonBudgetWallClock, signals.Newf("wall-clock budget exceeded: %s", time.Since(p.usage.Started))
	}
	if p.budget.MaxActions > 0 && p.usage.ActionCount > p.budget.MaxActions {
		return ReasonBudgetActions, signals.Newf("action-count budget exceeded: %d > %d", p.usage.ActionCount, p.budget.MaxActions)
	}
	return "", nil
}

// AddTokenUsage accumulates LLM token spend observed by the caller (the
// LLM Operations layer reports usage here after each call).
func (p *Process) AddTokenUsage(tokens int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usage.Tokens += tokens
}

func (p *Process) transitionCompleted(ctx context.Context, lastGoalAction planner.Action) error {
	p.mu.Lock()
	p.status = StatusCompleted
	p.mu.Unlock()
	p.publish(ctx, eventbus.Event{Kind: eventbus.GoalAchieved, ProcessID: p.id, ActionName: lastGoalAction.Name})
	return nil
}

func (p *Process) transitionStuck(ctx context.Context) error {
	p.mu.Lock()
	p.status = StatusStuck
	p.mu.Unlock()
	p.logger.Warn("process stuck: no plan found", "process_id", p.id)
	p.publish(ctx, eventbus.Event{Kind: eventbus.ProcessStuck, ProcessID: p.id})
	return signals.ErrNoPlanFound
}

func (p *Process) transitionFailed(ctx context.Context, reason FailureReason, cause error) error {
	p.mu.Lock()
	p.status = StatusFailed
	if reason == ReasonCancelled {
		p.status = StatusCancelled
	}
	p.reason = reason
	p.mu.Unlock()
	kind := eventbus.ProcessFailed
	if reason == ReasonCancelled {
		kind = eventbus.ProcessCancelled
		p.logger.Info("process cancelled", "process_id", p.id)
	} else {
		p.logger.Error("process failed", "process_id", p.id, "reason", reason, "error", cause)
	}
	p.publish(ctx, eventbus.Event{Kind: kind, ProcessID: p.id, Reason: string(reason)})
	return cause
}

func (p *Process) transitionWaiting(ctx context.Context, req *signals.UserInputRequired) error {
	binding := req.BindingName
	if binding == "" {
		binding = blackboard.DefaultBinding
	}
	p.mu.Lock()
	p.status = StatusWaitingForInput
	p.waitingFor = binding
	p.mu.Unlock()
	p.publish(ctx, eventbus.Event{Kind: eventbus.ProcessWaiting, ProcessID: p.id, Reason: req.Prompt})
	return nil
}

// Resume supplies the value requested by a UserInputRequired signal and
// transitions WAITING_FOR_INPUT -> RUNNING, continuing Run in the caller's
// goroutine (§4.8 "input supplied via resume() -> RUNNING").
func (p *Process) Resume(ctx context.Context, value any) error {
	p.mu.Lock()
	if p.status != StatusWaitingForInput {
		p.mu.Unlock()
		return signals.Newf("cannot resume process %q: not waiting for input (status=%s)", p.id, p.status)
	}
	binding := p.waitingFor
	p.status = StatusRunning
	p.waitingFor = ""
	p.mu.Unlock()

	p.bb.Bind(binding, value)
	p.publish(ctx, eventbus.Event{Kind: eventbus.ProcessResumed, ProcessID: p.id})
	return p.Run(ctx)
}

func (p *Process) publish(ctx context.Context, ev eventbus.Event) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(ctx, ev)
}

func isNoPlanFound(err error) bool {
	return errors.Is(err, signals.ErrNoPlanFound)
}
