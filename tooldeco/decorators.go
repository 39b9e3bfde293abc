// Package tooldeco implements the six-layer Tool Decorator Chain of §4.4 as
// a stack of delegating wrappers (Design Note §9: "a stack of higher-order
// functions each taking the inner call and returning a new call" / "a
// composed pipeline of middleware values"). Each decorator owns an inner
// tools.Tool and forwards calls, possibly transforming them.
//
// Chain wraps, innermost first, in exactly the order the spec lists them so
// composition is deterministic: MetadataEnriching, Observability,
// EventPublishing, OutputTransforming, ExceptionSuppressing, ProcessBinding.
// Because ProcessBinding ends up outermost, it is the first thing that runs
// on a call and the ambient process it installs is visible to every layer
// beneath it, including the raw tool.
package tooldeco

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentforge/agentforge/eventbus"
	"github.com/agentforge/agentforge/signals"
	"github.com/agentforge/agentforge/telemetry"
	"github.com/agentforge/agentforge/tools"
)

// Scheduler is consulted by EventPublishing for an optional admission delay
// before a tool call (§4.4 step 3; §5 "admission-control delay"). It is
// satisfied by ratelimit.Adaptive or ratelimit.NoDelay.
type Scheduler interface {
	Delay(ctx context.Context) error
}

// Transformer applies a configured string transformation to a tool result's
// text (§4.4 step 4), e.g. truncation or redaction. It returns the
// transformed text.
type Transformer func(text string) string

// Options configures the chain. All fields are optional; zero values select
// conservative no-op behavior (no delay, no transform, no metadata).
type Options struct {
	// GroupMetadata is attached to every tool's Metadata().Extra by
	// MetadataEnriching, representing "the owning tool-group's metadata"
	// (§4.4 step 1).
	GroupMetadata map[string]any
	Tracer        telemetry.Tracer
	Logger        *slog.Logger
	Bus           eventbus.Bus
	Scheduler     Scheduler
	Transform     Transformer
	// Process is installed into the ambient context by ProcessBinding for the
	// duration of each call (§4.4 step 6).
	Process ProcessHandle
}

// Decorate wraps inner in the full six-layer chain described by Options.
func Decorate(inner tools.Tool, opts Options) tools.Tool {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NoopTracer{}
	}
	t := tools.Tool(inner)
	t = metadataEnriching{inner: t, group: opts.GroupMetadata, logger: opts.Logger}
	t = observability{inner: t, tracer: opts.Tracer}
	t = eventPublishing{inner: t, bus: opts.Bus, scheduler: opts.Scheduler}
	t = outputTransforming{inner: t, transform: opts.Transform, logger: opts.Logger}
	t = exceptionSuppressing{inner: t}
	t = processBinding{inner: t, process: opts.Process}
	return t
}

// --- 1. MetadataEnriching -----------------------------------------------

type metadataEnriching struct {
	inner  tools.Tool
	group  map[string]any
	logger *slog.Logger
}

func (d metadataEnriching) Definition() tools.Definition { return d.inner.Definition() }

func (d metadataEnriching) Metadata() tools.Metadata {
	m := d.inner.Metadata()
	if len(d.group) == 0 {
		return m
	}
	merged := make(map[string]any, len(m.Extra)+len(d.group))
	for k, v := range d.group {
		merged[k] = v
	}
	for k, v := range m.Extra {
		merged[k] = v
	}
	m.Extra = merged
	return m
}

func (d metadataEnriching) Call(ctx context.Context, input string) (tools.Result, error) {
	res, err := d.inner.Call(ctx, input)
	if err != nil {
		if signals.IsControlFlow(err) {
			return res, err
		}
		d.logger.Warn("tool call failed", "tool", d.Definition().Name, "error", err)
		return res, err
	}
	return res, nil
}

// --- 2. Observability -----------------------------------------------------

type observability struct {
	inner  tools.Tool
	tracer telemetry.Tracer
}

func (d observability) Definition() tools.Definition { return d.inner.Definition() }
func (d observability) Metadata() tools.Metadata     { return d.inner.Metadata() }

func (d observability) Call(ctx context.Context, input string) (tools.Result, error) {
	name := d.Definition().Name
	ctx, span := d.tracer.Start(ctx, "tool.call", telemetry.A("tool.name", name), telemetry.A("tool.input", input))
	defer span.End()

	res, err := d.inner.Call(ctx, input)

	span.SetAttr("tool.status", resultStatus(res, err))
	if err != nil {
		span.SetStatus(err)
	} else if res.Kind == tools.KindError {
		span.SetAttr("tool.error", res.Content)
	} else {
		span.SetAttr("tool.result", res.Content)
		span.SetStatus(nil)
	}
	return res, err
}

func resultStatus(res tools.Result, err error) string {
	switch {
	case err != nil:
		return "error"
	case res.Kind == tools.KindError:
		return "tool_error"
	default:
		return "ok"
	}
}

// --- 3. EventPublishing -----------------------------------------------------

type eventPublishing struct {
	inner     tools.Tool
	bus       eventbus.Bus
	scheduler Scheduler
}

func (d eventPublishing) Definition() tools.Definition { return d.inner.Definition() }
func (d eventPublishing) Metadata() tools.Metadata     { return d.inner.Metadata() }

func (d eventPublishing) Call(ctx context.Context, input string) (tools.Result, error) {
	if d.scheduler != nil {
		if err := d.scheduler.Delay(ctx); err != nil {
			return tools.Result{}, err
		}
	}

	name := d.Definition().Name
	processID := processIDFromContext(ctx)
	d.publish(ctx, eventbus.Event{Kind: eventbus.ToolCallRequest, ProcessID: processID, ToolName: name, Input: input})

	start := time.Now()
	res, err := d.inner.Call(ctx, input)
	duration := time.Since(start)

	ev := eventbus.Event{Kind: eventbus.ToolCallResponse, ProcessID: processID, ToolName: name, Duration: duration}
	if err != nil {
		ev.Err = fmt.Sprintf("%T: %s", err, err.Error())
	} else {
		ev.Result = res.AsString()
	}
	d.publish(ctx, ev)
	return res, err
}

func (d eventPublishing) publish(ctx context.Context, ev eventbus.Event) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(ctx, ev)
}

func processIDFromContext(ctx context.Context) string {
	if p := ProcessFromContext(ctx); p != nil {
		return p.ProcessID()
	}
	return ""
}

// --- 4. OutputTransforming -----------------------------------------------------

type outputTransforming struct {
	inner     tools.Tool
	transform Transformer
	logger    *slog.Logger
}

func (d outputTransforming) Definition() tools.Definition { return d.inner.Definition() }
func (d outputTransforming) Metadata() tools.Metadata     { return d.inner.Metadata() }

func (d outputTransforming) Call(ctx context.Context, input string) (tools.Result, error) {
	res, err := d.inner.Call(ctx, input)
	if err != nil || d.transform == nil || res.Content == "" {
		return res, err
	}
	before := len(res.Content)
	res.Content = d.transform(res.Content)
	if saved := before - len(res.Content); saved > 0 {
		d.logger.Debug("tool output transformed", "tool", d.Definition().Name, "bytes_saved", saved)
	}
	return res, err
}

// --- 5. ExceptionSuppressing -----------------------------------------------------

type exceptionSuppressing struct {
	inner tools.Tool
}

func (d exceptionSuppressing) Definition() tools.Definition { return d.inner.Definition() }
func (d exceptionSuppressing) Metadata() tools.Metadata     { return d.inner.Metadata() }

func (d exceptionSuppressing) Call(ctx context.Context, input string) (tools.Result, error) {
	res, err := d.inner.Call(ctx, input)
	if err == nil {
		return res, nil
	}
	if signals.IsControlFlow(err) {
		return res, err
	}
	return suppressedResult(d.Definition().Name, err), nil
}

func suppressedResult(name string, err error) tools.Result {
	return tools.ErrorResult(fmt.Sprintf("WARNING: Tool '%s' failed with exception: %s", name, err.Error()))
}

// --- 6. ProcessBinding -----------------------------------------------------

type processBinding struct {
	inner   tools.Tool
	process ProcessHandle
}

func (d processBinding) Definition() tools.Definition { return d.inner.Definition() }
func (d processBinding) Metadata() tools.Metadata     { return d.inner.Metadata() }

func (d processBinding) Call(ctx context.Context, input string) (tools.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d.process == nil {
		return d.inner.Call(ctx, input)
	}
	scoped := withProcess(ctx, d.process)
	return d.inner.Call(scoped, input)
}
