// Package tools defines the polymorphic Tool capability (§3 "Tool") that the
// LLM may invoke within a Tool Loop, plus the Result union its Call method
// returns. Decorators in package tooldeco wrap a Tool to add cross-cutting
// concerns without changing this contract (§4.4).
package tools

import "context"

// Definition is what a Tool presents to the model: name, description, and a
// JSON Schema for its input (§3, §6).
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Metadata carries tool behavior flags that are not part of the model-facing
// Definition. ReturnDirect short-circuits the Tool Loop (§4.5 step 6): once
// such a tool produces a result, the loop returns it as the terminal answer
// without another LLM round-trip.
type Metadata struct {
	ReturnDirect bool
	// Extra carries decorator-attached metadata (e.g. MetadataEnriching's
	// owning tool-group info, §4.4 step 1).
	Extra map[string]any
}

// Result is the tagged union a Tool.Call returns (§3). Exactly one
// constructor should be used; callers inspect Kind to discriminate.
type Result struct {
	Kind     ResultKind
	Content  string
	Artifact any
}

// ResultKind discriminates the Result union.
type ResultKind int

const (
	KindText ResultKind = iota
	KindWithArtifact
	KindError
)

// Text constructs a Result carrying plain text content.
func Text(content string) Result { return Result{Kind: KindText, Content: content} }

// WithArtifact constructs a Result carrying text content plus a structured
// artifact (e.g. a decoded domain object produced alongside the text
// summary).
func WithArtifact(content string, artifact any) Result {
	return Result{Kind: KindWithArtifact, Content: content, Artifact: artifact}
}

// Error constructs a Result reporting a tool-level failure. This is distinct
// from a Go error returned by Call: an Error Result is shown to the model as
// part of the conversation, while a returned Go error (outside the
// control-flow signals) is converted into one of these by
// tooldeco.ExceptionSuppressing (§4.4 step 5).
func ErrorResult(message string) Result { return Result{Kind: KindError, Content: message} }

// AsString returns the Result's text representation regardless of Kind,
// matching the Tool Loop's resultAsString computation (§4.5 step 6):
// Text.content, WithArtifact.content, or Error.message.
func (r Result) AsString() string { return r.Content }

// Tool is the capability every decorator wraps and every Tool Loop iteration
// calls by name (§3, §4.4, §4.5).
type Tool interface {
	Definition() Definition
	Metadata() Metadata
	// Call invokes the tool with a JSON-encoded input string and an optional
	// context. context may be nil when invoked outside an Agent Process
	// (e.g. unit tests); decorators that need it (ProcessBinding,
	// Observability) must tolerate a nil context and treat absence of a bound
	// process as "no ambient process" rather than failing.
	Call(ctx context.Context, input string) (Result, error)
}

// Func adapts a plain function into a Tool with fixed Definition/Metadata,
// for tests and simple built-in tools.
type Func struct {
	Def  Definition
	Meta Metadata
	Fn   func(ctx context.Context, input string) (Result, error)
}

func (f Func) Definition() Definition { return f.Def }
func (f Func) Metadata() Metadata     { return f.Meta }
func (f Func) Call(ctx context.Context, input string) (Result, error) { return f.Fn(ctx, input) }
