// Package signals defines the error taxonomy of §7 and the two designated
// control-flow signals of §4.4/§4.8. Control-flow signals are not failures:
// they are never suppressed by the tool decorator chain, never transformed
// into tool-result text, and always bubble to the Tool Loop or Agent Process,
// which interpret them as state-machine transitions.
package signals

import (
	"errors"
	"fmt"
)

// Error is the base structured error used across the module, following the
// teacher's toolerrors.ToolError shape: a message plus an optional wrapped
// cause, supporting errors.Is/As via Unwrap.
type Error struct {
	Message string
	Code    string
	Cause   error
}

// New constructs an Error with the given message.
func New(message string) *Error { return &Error{Message: message} }

// Newf formats according to a format specifier and returns an *Error.
func Newf(format string, args ...any) *Error { return &Error{Message: fmt.Sprintf(format, args...)} }

// WithCause wraps cause under message, preserving errors.Is/As via Unwrap.
func WithCause(message string, cause error) *Error {
	return &Error{Message: message, Cause: cause}
}

// WithCode attaches a machine-readable code (e.g. matching one of the
// sentinel errors below) and returns e for chaining.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap supports errors.Is/As against Cause.
func (e *Error) Unwrap() error { return e.Cause }

// Sentinel errors from the §7 taxonomy. Use errors.Is against these to
// classify a failure; wrap them with WithCause to attach context.
var (
	// ErrTimeout marks an LLM attempt that did not complete within its
	// configured timeout. Retriable at the LLM layer (§4.3).
	ErrTimeout = errors.New("llm attempt timed out")

	// ErrTransient marks a transport or parse failure considered retriable.
	ErrTransient = errors.New("transient llm error")

	// ErrNoPlanFound marks a goal-directed search that found no path to the
	// goal within its visited-state bound. Non-fatal for the process; the
	// Agent Process transitions to STUCK.
	ErrNoPlanFound = errors.New("no plan found")

	// ErrMissingInput marks an action whose non-optional input binding could
	// not be resolved from the blackboard. Fatal for the action; the planner
	// may replan.
	ErrMissingInput = errors.New("missing required input")

	// ErrToolLoopLimit marks a Tool Loop that exhausted maxIterations without
	// producing a terminal answer. Fatal for the action.
	ErrToolLoopLimit = errors.New("tool loop iteration limit exceeded")

	// ErrNoSuitableModel marks a Model Provider lookup that could not resolve
	// a role or name to an LLM Service. Fatal for the interaction.
	ErrNoSuitableModel = errors.New("no suitable model")

	// ErrInterrupted marks an LLM call or process loop that observed
	// cancellation. Terminates the process in state CANCELLED.
	ErrInterrupted = errors.New("interrupted")

	// ErrDuplicateToolName marks two actions colliding on the same curried
	// tool name when the Supervisor planner synthesizes its super-action.
	ErrDuplicateToolName = errors.New("duplicate curried tool name")
)

// InvalidStructuredOutput is returned by LLM Operations when a candidate
// still violates constraints after the single violations-report retry
// (§4.3 step 4, §8 Testable Properties).
type InvalidStructuredOutput struct {
	Violations []string
	Candidate  any
}

// Error implements error.
func (e *InvalidStructuredOutput) Error() string {
	return fmt.Sprintf("invalid structured output: %d violation(s)", len(e.Violations))
}

// ReplanRequested is a control-flow signal raised by an action or tool to ask
// the Agent Process to re-enter the planner without treating the current
// state as a failure (§4.8: RUNNING -> RUNNING via the planner).
type ReplanRequested struct {
	Reason string
}

// Error implements error so ReplanRequested can travel through ordinary Go
// error-returning call chains; callers must check for it explicitly (e.g. via
// errors.As) rather than treating it as an ordinary failure.
func (e *ReplanRequested) Error() string { return "replan requested: " + e.Reason }

// NewReplanRequested constructs a ReplanRequested control-flow signal.
func NewReplanRequested(reason string) *ReplanRequested { return &ReplanRequested{Reason: reason} }

// UserInputRequired is a control-flow signal raised by an action or tool to
// ask the Agent Process to pause in WAITING_FOR_INPUT until resume() is
// called with the requested value (§4.8).
type UserInputRequired struct {
	Prompt string
	// BindingName is the blackboard binding the resumed input should be
	// written under. Empty means the default binding "it".
	BindingName string
}

// Error implements error.
func (e *UserInputRequired) Error() string { return "user input required: " + e.Prompt }

// NewUserInputRequired constructs a UserInputRequired control-flow signal.
func NewUserInputRequired(prompt string) *UserInputRequired {
	return &UserInputRequired{Prompt: prompt}
}

// IsControlFlow reports whether err is one of the designated control-flow
// signals (ReplanRequested or UserInputRequired), at any depth in its error
// chain. The Tool Decorator Chain uses this to decide whether to suppress a
// thrown error into a Tool.Result.Error or let it bubble unchanged (§4.4).
func IsControlFlow(err error) bool {
	if err == nil {
		return false
	}
	var replan *ReplanRequested
	var input *UserInputRequired
	return errors.As(err, &replan) || errors.As(err, &input)
}
