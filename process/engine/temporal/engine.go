// Package temporal runs an Agent Process as a durable Temporal workflow,
// adapted from the teacher's runtime/agent/engine/temporal adapter: same
// client/worker construction shape, same pattern of mapping a Temporal
// service error to a sentinel the caller can match on (see mapSignalError
// in the teacher's engine.go). Trimmed to the single workflow shape this
// module schedules -- one workflow drives one process.Process through
// Run/Resume to completion -- instead of the teacher's general-purpose
// named workflow/activity registry, since this module has exactly one kind
// of long-running unit of work per engine.
package temporal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/agentforge/agentforge/process/engine"
)

const (
	workflowName       = "agentforge.process.run"
	runActivityName    = "agentforge.process.runActivity"
	resumeActivityName = "agentforge.process.resumeActivity"
	resumeSignalName   = "agentforge.process.resume"

	waitingForInputErrorType = "WaitingForInput"
)

// Options configures the Temporal-backed Engine.
type Options struct {
	// Client is an optional pre-configured Temporal client. If nil, the
	// adapter dials one from ClientOptions.
	Client client.Client
	// ClientOptions is used to dial a client when Client is nil.
	ClientOptions client.Options
	// TaskQueue is the Temporal task queue the workflow and its activities
	// run on.
	TaskQueue string
	// WorkerOptions is passed directly to Temporal's worker.New.
	WorkerOptions worker.Options
	// DisableWorkerAutoStart skips starting the worker in New; the caller
	// is then responsible for calling Engine.StartWorker, e.g. when a
	// separate process hosts the worker for this task queue.
	DisableWorkerAutoStart bool
}

// Engine is a process/engine.Engine that drives each process.Process as a
// durable Temporal workflow execution. Unlike the in-memory engine,
// progress survives a restart of this process: Temporal replays workflow
// history to resume exactly where the workflow left off. The activities
// that actually call Run/Resume still execute in this process, so a given
// process.Process instance must stay reachable (via the runnables registry
// below) for as long as its workflow can still be retried here.
type Engine struct {
	client     client.Client
	ownsClient bool
	taskQueue  string
	worker     worker.Worker

	mu      sync.Mutex
	started bool

	runnables sync.Map // processID string -> engine.Runnable
}

// New dials (if Options.Client is nil) a Temporal client, registers the
// workflow and activities this adapter needs, and -- unless
// DisableWorkerAutoStart is set -- starts the worker.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, errors.New("temporal: task queue is required")
	}

	cli := opts.Client
	ownsClient := false
	if cli == nil {
		var err error
		cli, err = client.NewLazyClient(opts.ClientOptions)
		if err != nil {
			return nil, fmt.Errorf("temporal: dial client: %w", err)
		}
		ownsClient = true
	}

	e := &Engine{client: cli, ownsClient: ownsClient, taskQueue: opts.TaskQueue}

	w := worker.New(cli, opts.TaskQueue, opts.WorkerOptions)
	w.RegisterWorkflowWithOptions(e.runWorkflow, workflow.RegisterOptions{Name: workflowName})
	w.RegisterActivityWithOptions(e.runActivity, activity.RegisterOptions{Name: runActivityName})
	w.RegisterActivityWithOptions(e.resumeActivity, activity.RegisterOptions{Name: resumeActivityName})
	e.worker = w

	if !opts.DisableWorkerAutoStart {
		if err := e.StartWorker(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// StartWorker starts polling the task queue in the background. Idempotent;
// New calls it automatically unless Options.DisableWorkerAutoStart is set.
func (e *Engine) StartWorker() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	if err := e.worker.Start(); err != nil {
		return fmt.Errorf("temporal: start worker: %w", err)
	}
	e.started = true
	return nil
}

// Close stops the worker and, if this Engine dialed its own client, closes
// it.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.started {
		e.worker.Stop()
		e.started = false
	}
	e.mu.Unlock()
	if e.ownsClient {
		e.client.Close()
	}
}

// Start implements engine.Engine. It registers p in the local activity
// lookup -- the workflow definition itself must stay deterministic and so
// never touches p directly; runActivity/resumeActivity do, on whatever
// worker process picks up the task -- and starts a workflow execution keyed
// by p.ProcessID(), which also doubles as the idempotency key: starting the
// same process id twice reuses the existing run.
func (e *Engine) Start(ctx context.Context, p engine.Runnable) (engine.Handle, error) {
	if p == nil {
		return nil, errors.New("temporal: process is required")
	}
	id := p.ProcessID()
	if id == "" {
		return nil, errors.New("temporal: process id is required")
	}
	e.runnables.Store(id, p)

	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: e.taskQueue,
	}, workflowName, id)
	if err != nil {
		e.runnables.Delete(id)
		return nil, fmt.Errorf("temporal: start workflow: %w", err)
	}
	return &handle{engine: e, processID: id, run: run}, nil
}

func (e *Engine) lookup(processID string) (engine.Runnable, error) {
	v, ok := e.runnables.Load(processID)
	if !ok {
		return nil, fmt.Errorf("temporal: no process registered locally for id %q (worker restarted since Start?)", processID)
	}
	return v.(engine.Runnable), nil
}

// runWorkflow is the single workflow definition this adapter registers: it
// runs the process to completion via runActivity, then -- for as long as
// the process keeps reporting WAITING_FOR_INPUT -- blocks on the resume
// signal and re-enters via resumeActivity.
func (e *Engine) runWorkflow(ctx workflow.Context, processID string) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue: e.taskQueue,
		// The agent loop can run for as long as its own budget (§4.8
		// MaxWallClock) allows; don't impose a second, Temporal-side
		// ceiling on top of it.
		ScheduleToCloseTimeout: 0,
	})

	err := workflow.ExecuteActivity(ctx, runActivityName, processID).Get(ctx, nil)
	if !isWaitingForInput(err) {
		return err
	}

	resumeCh := workflow.GetSignalChannel(ctx, resumeSignalName)
	for {
		var payload resumeSignal
		resumeCh.Receive(ctx, &payload)
		err := workflow.ExecuteActivity(ctx, resumeActivityName, resumeInput{
			ProcessID: processID,
			Value:     payload.Value,
		}).Get(ctx, nil)
		if !isWaitingForInput(err) {
			return err
		}
	}
}

type resumeSignal struct {
	Value any
}

type resumeInput struct {
	ProcessID string
	Value     any
}

// runActivity drives p.Run to completion or to its next WAITING_FOR_INPUT
// pause. A pause is reported back to the workflow as an application error
// of type waitingForInputErrorType rather than nil, since Run itself
// returns nil in both cases (see process.Process.Waiting).
func (e *Engine) runActivity(ctx context.Context, processID string) error {
	p, err := e.lookup(processID)
	if err != nil {
		return err
	}
	if err := p.Run(ctx); err != nil {
		return err
	}
	if p.Waiting() {
		return temporal.NewApplicationError("process is waiting for input", waitingForInputErrorType)
	}
	return nil
}

func (e *Engine) resumeActivity(ctx context.Context, in resumeInput) error {
	p, err := e.lookup(in.ProcessID)
	if err != nil {
		return err
	}
	if err := p.Resume(ctx, in.Value); err != nil {
		return err
	}
	if p.Waiting() {
		return temporal.NewApplicationError("process is waiting for input", waitingForInputErrorType)
	}
	return nil
}

func isWaitingForInput(err error) bool {
	if err == nil {
		return false
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type() == waitingForInputErrorType
	}
	return false
}

// handle implements engine.Handle over a Temporal workflow run.
type handle struct {
	engine    *Engine
	processID string
	run       client.WorkflowRun
}

func (h *handle) Wait(ctx context.Context) error {
	return mapSignalError(h.run.Get(ctx, nil))
}

// Resume signals the running workflow with value. Unlike the in-memory
// engine, this does not block until the process reaches its next pause or
// terminal status -- the workflow continues on whichever worker next polls
// the task queue, possibly a different process than this one. Call Wait to
// observe the eventual outcome.
func (h *handle) Resume(ctx context.Context, value any) error {
	err := h.engine.client.SignalWorkflow(ctx, h.processID, h.run.GetRunID(), resumeSignalName, resumeSignal{Value: value})
	return mapSignalError(err)
}

func (h *handle) Cancel() {
	_ = h.engine.client.CancelWorkflow(context.Background(), h.processID, h.run.GetRunID())
}

// mapSignalError normalizes the Temporal service errors callers most
// commonly need to branch on into engine's backend-agnostic sentinels,
// mirroring the teacher's own mapSignalError.
func mapSignalError(err error) error {
	if err == nil {
		return nil
	}
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", engine.ErrProcessNotFound, err)
	}
	var failedPrecondition *serviceerror.FailedPrecondition
	if errors.As(err, &failedPrecondition) {
		return fmt.Errorf("%w: %v", engine.ErrProcessCompleted, err)
	}
	return err
}
