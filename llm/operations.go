package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/agentforge/agentforge/eventbus"
	"github.com/agentforge/agentforge/llm/model"
	"github.com/agentforge/agentforge/signals"
	"github.com/agentforge/agentforge/tooldeco"
	"github.com/agentforge/agentforge/tools"

	"github.com/google/uuid"
)

// Request bundles the parameters of a single createObject/createObjectIfPossible
// call (§4.3 "createObject(messages, interaction, outputType, process, action)").
type Request struct {
	Messages    []model.Message
	Interaction Interaction
	OutputType  OutputType
	// Process is the ambient Agent Process, installed into decorated tool
	// calls by ProcessBinding and tagged on emitted events. May be nil
	// outside a running process (e.g. tests).
	Process tooldeco.ProcessHandle
	// ActionName tags emitted events; empty outside a dispatched action.
	ActionName string
}

// Operations implements the LLM Interaction layer of §4.3: a single
// structured-output call with bounded retries, timeout enforcement, and
// constraint validation.
type Operations struct {
	Sender Sender
	// Resolver resolves Request.Interaction.ToolGroups into concrete tools
	// before decoration (§4.3 step 1). May be nil if no interaction uses
	// tool groups.
	Resolver ToolGroupResolver
	// Decorate configures the six-layer chain applied to every resolved
	// tool (§4.4). The Process field is overwritten per-call from
	// Request.Process.
	Decorate tooldeco.Options
	Retry    RetryConfig
	Prompts  PromptGenerator
	Bus      eventbus.Bus
	Logger   *slog.Logger
}

// NewOperations constructs an Operations with conservative defaults (three
// attempts, a default prompt generator) ready for immediate use.
func NewOperations(sender Sender, bus eventbus.Bus, logger *slog.Logger) *Operations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Operations{
		Sender:  sender,
		Retry:   DefaultRetryConfig(),
		Prompts: DefaultPromptGenerator{},
		Bus:     bus,
		Logger:  logger,
	}
}

// CreateObject implements entry point (1) of §4.3: "must succeed or fail
// loudly". Go has no throw/catch distinction, so "fail loudly" means a
// non-nil error; see CreateObjectIfPossible for the result-value variant.
func (o *Operations) CreateObject(ctx context.Context, req Request) (any, error) {
	if o.Prompts == nil {
		o.Prompts = DefaultPromptGenerator{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	toolDefs, err := o.resolveAndDecorate(ctx, req)
	if err != nil {
		return nil, err
	}

	interactionID := uuid.NewString()
	o.publish(ctx, eventbus.Event{
		Kind:          eventbus.LLMRequest,
		ProcessID:     processID(req.Process),
		ActionName:    req.ActionName,
		InteractionID: interactionID,
	})
	start := time.Now()

	messages := req.Messages
	if req.Interaction.Validation && req.OutputType.Schema != nil {
		messages = append(append([]model.Message{}, messages...), model.System(o.Prompts.RequiredShape(req.OutputType)))
	}

	candidate, raw, usage, err := o.callAndParse(ctx, messages, toolDefs, req.Interaction.Options, req.OutputType)
	if err == nil && req.Interaction.Validation {
		candidate, err = o.validateWithOneRetry(ctx, messages, toolDefs, req, candidate, raw)
	}

	o.publish(ctx, eventbus.Event{
		Kind:          eventbus.LLMResponse,
		ProcessID:     processID(req.Process),
		ActionName:    req.ActionName,
		InteractionID: interactionID,
		Duration:      time.Since(start),
		Err:           errString(err),
	})
	if err != nil {
		return nil, err
	}
	if sink, ok := req.Process.(tokenSink); ok {
		sink.AddTokenUsage(usage.TotalTokens)
	}
	return candidate, nil
}

// tokenSink is the minimal view of process.Process this package needs to
// report spend against a budget, defined locally so llm never imports
// process (mirroring the tooldeco.ProcessHandle / planner.ActionRunner
// import-cycle pattern used throughout this module).
type tokenSink interface {
	AddTokenUsage(tokens int)
}

// CreateObjectIfPossible implements entry point (2) of §4.3: returns a
// failure value (ok=false) instead of an error for ordinary createObject
// failures. Control-flow signals and context cancellation still propagate
// as an error, since those are never ordinary failures (§4.4 "Control-flow
// signal exceptions").
func (o *Operations) CreateObjectIfPossible(ctx context.Context, req Request) (object any, ok bool, err error) {
	object, err = o.CreateObject(ctx, req)
	if err == nil {
		return object, true, nil
	}
	if signals.IsControlFlow(err) || errors.Is(err, signals.ErrInterrupted) || ctx.Err() != nil {
		return nil, false, err
	}
	o.Logger.Warn("createObjectIfPossible: call failed", "error", err)
	return nil, false, nil
}

// resolveAndDecorate implements §4.3 step 1: resolve tool-group references,
// combine with explicitly listed tools, and wrap each in the six-layer
// decorator chain.
func (o *Operations) resolveAndDecorate(ctx context.Context, req Request) ([]model.ToolDefinition, error) {
	all := append([]tools.Tool{}, req.Interaction.Tools...)
	if len(req.Interaction.ToolGroups) > 0 {
		if o.Resolver == nil {
			return nil, signals.Newf("interaction references tool groups %v but no ToolGroupResolver is configured", req.Interaction.ToolGroups)
		}
		resolved, err := o.Resolver.Resolve(ctx, req.Interaction.ToolGroups)
		if err != nil {
			return nil, signals.WithCause("resolve tool groups", err)
		}
		all = append(all, resolved...)
	}

	decOpts := o.Decorate
	decOpts.Process = req.Process
	defs := make([]model.ToolDefinition, 0, len(all))
	for _, t := range all {
		decorated := tooldeco.Decorate(t, decOpts)
		def := decorated.Definition()
		defs = append(defs, model.ToolDefinition{Name: def.Name, Description: def.Description, InputSchema: def.InputSchema})
	}
	return defs, nil
}

// callAndParse implements §4.3 step 3 (retry+timeout wrapped call) and the
// parse half of step 4: a JSON/parse failure is itself retriable, so it is
// folded into the same attempt function the retry policy drives.
func (o *Operations) callAndParse(ctx context.Context, messages []model.Message, toolDefs []model.ToolDefinition, opts Options, t OutputType) (any, []byte, model.Usage, error) {
	var candidate any
	var rawCandidate []byte
	var usage model.Usage

	attempt := func(attemptCtx context.Context) error {
		res, err := o.Sender.Send(attemptCtx, messages, toolDefs, opts)
		if err != nil {
			return err
		}
		usage = res.Usage
		raw, perr := firstGenerationJSON(res)
		if perr != nil {
			return signals.WithCause("parse structured output candidate", signals.ErrTransient)
		}
		decoded, derr := decode(t, raw)
		if derr != nil {
			return signals.WithCause("decode structured output candidate", signals.ErrTransient)
		}
		candidate = decoded
		rawCandidate = raw
		return nil
	}

	err := withRetry(ctx, o.Retry, func(retryCtx context.Context) error {
		return withTimeout(retryCtx, opts.Timeout, attempt)
	})
	return candidate, rawCandidate, usage, err
}

// validateWithOneRetry implements §4.3 step 4's violations path: exactly one
// additional attempt with a violations-report prompt, then
// InvalidStructuredOutput if violations remain.
func (o *Operations) validateWithOneRetry(ctx context.Context, messages []model.Message, toolDefs []model.ToolDefinition, req Request, candidate any, raw []byte) (any, error) {
	vs, err := violations(req.OutputType, raw)
	if err != nil {
		return candidate, nil
	}
	if len(vs) == 0 {
		return candidate, nil
	}

	o.Logger.Warn("structured output violated constraints, retrying once", "type", req.OutputType.Name, "violations", vs)
	retryMessages := append(append([]model.Message{}, messages...), model.User(o.Prompts.ViolationsReport(req.OutputType, vs)))

	res, err := o.Sender.Send(ctx, retryMessages, toolDefs, req.Interaction.Options)
	if err != nil {
		return nil, err
	}
	rawRetry, err := firstGenerationJSON(res)
	if err != nil {
		return nil, &signals.InvalidStructuredOutput{Violations: vs, Candidate: candidate}
	}
	decoded, err := decode(req.OutputType, rawRetry)
	if err != nil {
		return nil, &signals.InvalidStructuredOutput{Violations: vs, Candidate: candidate}
	}

	vs2, err := violations(req.OutputType, rawRetry)
	if err != nil || len(vs2) > 0 {
		return nil, &signals.InvalidStructuredOutput{Violations: vs2, Candidate: decoded}
	}
	return decoded, nil
}

func firstGenerationJSON(res model.CallResult) ([]byte, error) {
	if len(res.Generations) == 0 {
		return nil, signals.New("llm response carried no generations")
	}
	text := res.Generations[0].Text
	for _, g := range res.Generations[1:] {
		text += g.Text
	}
	return []byte(text), nil
}

func decode(t OutputType, raw []byte) (any, error) {
	target := t.New()
	if target == nil {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, err
	}
	return target, nil
}

func (o *Operations) publish(ctx context.Context, ev eventbus.Event) {
	if o.Bus == nil {
		return
	}
	o.Bus.Publish(ctx, ev)
}

func processID(p tooldeco.ProcessHandle) string {
	if p == nil {
		return ""
	}
	return p.ProcessID()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
