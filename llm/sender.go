// Package llm implements the LLM Interaction layer of §4.3: a single
// structured-output call with bounded retries, timeout enforcement, and
// constraint validation, plus the provider-agnostic Sender contract the Tool
// Loop drives directly (§4.5, §6).
package llm

import (
	"context"
	"time"

	"github.com/agentforge/agentforge/llm/model"
	"github.com/agentforge/agentforge/tools"
)

// Sender is the "LLM Message Sender" external collaborator of §6: a single
// shot call that must not execute tools itself, only surface tool-call
// requests in the returned result. Provider adapters (llm/provider/...)
// implement this.
type Sender interface {
	// Send issues one request with messages and the given tool definitions
	// and returns every candidate generation the provider produced, plus
	// cumulative usage. Implementations must not loop internally: the Tool
	// Loop (§4.5) owns iteration.
	Send(ctx context.Context, messages []model.Message, toolDefs []model.ToolDefinition, opts Options) (model.CallResult, error)
}

// Options configures a single LLM call, mirroring the teacher's
// model.Request knobs that matter to this spec: model selection, sampling,
// output cap, and timeout (§3 "LlmOptions").
type Options struct {
	// ModelRole selects a model by symbolic role ("best", "cheapest", ...)
	// when Model is empty (§6 "Model Provider").
	ModelRole string
	// Model selects a provider-specific model identifier directly.
	Model string
	Temperature float32
	MaxTokens   int
	// Timeout bounds a single attempt; §4.3 step 3 cancels and retries an
	// attempt that exceeds it.
	Timeout time.Duration
}

// Interaction is the §3 "LLM Interaction" value: created once per logical
// call and carried unchanged through every retry attempt.
type Interaction struct {
	ID      string
	Options Options
	// Tools lists the tools available for this interaction; may be empty for
	// a plain structured-output call with no tool use.
	Tools []tools.Tool
	// ToolGroups names tool-group references to resolve via a ToolGroupResolver
	// before decoration (§4.3 step 1).
	ToolGroups []string
	// Validation enables the constraint-validation retry path of §4.3 step 4.
	Validation bool
}

// ToolGroupResolver resolves named tool groups into concrete tools. The core
// does not own tool-group membership; this is a caller-supplied collaborator
// consulted once per interaction (§4.3 step 1).
type ToolGroupResolver interface {
	Resolve(ctx context.Context, groups []string) ([]tools.Tool, error)
}
