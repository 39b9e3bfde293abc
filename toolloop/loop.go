// Package toolloop implements the Tool Loop algorithm of §4.5: a bounded
// (LLM call -> tool execution -> LLM call ...) iteration that drives a
// Sender and a set of decorated tools to a terminal answer.
package toolloop

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agentforge/agentforge/llm"
	"github.com/agentforge/agentforge/llm/model"
	"github.com/agentforge/agentforge/signals"
	"github.com/agentforge/agentforge/tools"
)

// HistoryTransformer maps the accumulated message history to a (possibly
// smaller) history before an LLM call or after an iteration (§4.5 steps 1
// and 7). Transformers are applied in list order, each consuming the
// previous one's output.
type HistoryTransformer func(history []model.Message) []model.Message

// ResultTransformer post-processes a tool's resultAsString before it is
// appended to history (§4.5 step 6, "e.g. truncation").
type ResultTransformer func(toolName, result string) string

// BeforeLLMCall is notified with the history about to be sent, once per
// iteration, after the TransformBeforeLLMCall pipeline has run (§4.5 step 1).
type BeforeLLMCall func(ctx context.Context, iteration int, history []model.Message)

// AfterLLMCall is notified with the raw CallResult (pre-folding) and its
// usage (§4.5 step 3).
type AfterLLMCall func(ctx context.Context, iteration int, result model.CallResult)

// AfterToolResult is notified once per tool call after it has been folded
// into the result string (§4.5 step 6).
type AfterToolResult func(ctx context.Context, iteration int, call model.ToolCall, result tools.Result)

// AfterIteration is notified at the end of every iteration, including the
// terminal "zero tool calls" iteration where toolCalls is empty (§4.5 step
// 5 and step 7).
type AfterIteration func(ctx context.Context, iteration int, toolCalls []model.ToolCall)

// Inspectors bundles every notification hook the loop calls. All fields are
// optional.
type Inspectors struct {
	BeforeLLMCall   BeforeLLMCall
	AfterLLMCall    AfterLLMCall
	AfterToolResult AfterToolResult
	AfterIteration  AfterIteration
}

// Options configures a Loop.
type Options struct {
	// MaxIterations bounds the loop; exceeding it yields ErrToolLoopLimit
	// (§4.5 "Termination"). Defaults to 10 if zero.
	MaxIterations int

	TransformBeforeLLMCall  []HistoryTransformer
	TransformAfterToolResult []ResultTransformer
	TransformAfterIteration []HistoryTransformer

	Inspectors Inspectors

	Logger *slog.Logger
}

// Loop runs the bounded tool-calling iteration of §4.5 against a Sender and
// a fixed tool set, looked up by name.
type Loop struct {
	sender llm.Sender
	tools  map[string]tools.Tool
	opts   Options
}

// New constructs a Loop. toolSet's tools are expected to already be wrapped
// by the decorator chain (§4.4); the loop invokes Call on them directly.
func New(sender llm.Sender, toolSet []tools.Tool, opts Options) *Loop {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	byName := make(map[string]tools.Tool, len(toolSet))
	for _, t := range toolSet {
		byName[t.Definition().Name] = t
	}
	return &Loop{sender: sender, tools: byName, opts: opts}
}

// Outcome is the loop's terminal result: the final answer text, the full
// message history accumulated, and cumulative usage across every LLM call.
type Outcome struct {
	Answer  string
	History []model.Message
	Usage   model.Usage
}

// toolDefs returns the loop's tool set as provider-facing definitions, in a
// stable (name-sorted) order so repeated calls are deterministic.
func (l *Loop) toolDefs() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(l.tools))
	for _, t := range l.tools {
		d := t.Definition()
		defs = append(defs, model.ToolDefinition{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Run executes the loop starting from history, calling sendOpts on every
// LLM call.
func (l *Loop) Run(ctx context.Context, history []model.Message, sendOpts llm.Options) (Outcome, error) {
	var usage model.Usage
	defs := l.toolDefs()

	for iter := 0; iter < l.opts.MaxIterations; iter++ {
		transformed := applyHistory(l.opts.TransformBeforeLLMCall, history)
		if l.opts.Inspectors.BeforeLLMCall != nil {
			l.opts.Inspectors.BeforeLLMCall(ctx, iter, transformed)
		}

		result, err := l.sender.Send(ctx, transformed, defs, sendOpts)
		if err != nil {
			return Outcome{History: history, Usage: usage}, err
		}
		usage.Add(result.Usage)

		if l.opts.Inspectors.AfterLLMCall != nil {
			l.opts.Inspectors.AfterLLMCall(ctx, iter, result)
		}

		assistant, folded := foldGenerations(result.Generations)
		if folded {
			l.opts.Logger.Info("tool loop folded multiple candidate generations into one assistant message", "iteration", iter)
		}
		history = append(history, assistant)

		if len(assistant.ToolCalls) == 0 {
			if l.opts.Inspectors.AfterIteration != nil {
				l.opts.Inspectors.AfterIteration(ctx, iter, nil)
			}
			history = applyHistory(l.opts.TransformAfterIteration, history)
			return Outcome{Answer: assistant.Content, History: history, Usage: usage}, nil
		}

		returnDirect, directResult, err := l.runToolCalls(ctx, iter, assistant.ToolCalls, &history)
		if err != nil {
			return Outcome{History: history, Usage: usage}, err
		}

		if l.opts.Inspectors.AfterIteration != nil {
			l.opts.Inspectors.AfterIteration(ctx, iter, assistant.ToolCalls)
		}
		history = applyHistory(l.opts.TransformAfterIteration, history)

		if returnDirect {
			return Outcome{Answer: directResult, History: history, Usage: usage}, nil
		}
	}

	return Outcome{History: history, Usage: usage}, signals.ErrToolLoopLimit
}

// runToolCalls executes every tool call in order, appending a ToolResult
// message to history for each (§4.5 step 6). It returns (true, result) if a
// returnDirect tool fired, ending the loop immediately after that tool.
func (l *Loop) runToolCalls(ctx context.Context, iter int, calls []model.ToolCall, history *[]model.Message) (bool, string, error) {
	for _, call := range calls {
		tool, ok := l.tools[call.Name]

		var res tools.Result
		var err error
		if !ok {
			res = tools.ErrorResult(fmt.Sprintf("unknown tool %q", call.Name))
		} else {
			res, err = tool.Call(ctx, call.Arguments)
			if err != nil {
				if signals.IsControlFlow(err) {
					return false, "", err
				}
				// Non-control-flow errors from a decorated tool are expected
				// to already be folded into an Error Result by
				// tooldeco.ExceptionSuppressing; an error reaching here means
				// the tool was invoked undecorated. Treat it the same way.
				res = tools.ErrorResult(err.Error())
			}
		}

		resultText := res.AsString()
		if ok {
			for _, transform := range l.opts.TransformAfterToolResult {
				resultText = transform(call.Name, resultText)
			}
		}
		if l.opts.Inspectors.AfterToolResult != nil {
			l.opts.Inspectors.AfterToolResult(ctx, iter, call, res)
		}

		*history = append(*history, model.ToolResult(call.ID, resultText, res.Kind == tools.KindError))

		if ok && tool.Metadata().ReturnDirect {
			return true, resultText, nil
		}
	}
	return false, "", nil
}

// foldGenerations folds possibly-multiple candidate generations into a
// single assistant message (§4.5 step 3): concatenating non-empty text and
// unioning all tool calls. folded reports whether more than one generation
// was present.
func foldGenerations(gens []model.Generation) (model.Message, bool) {
	if len(gens) == 0 {
		return model.Assistant(""), false
	}
	if len(gens) == 1 {
		return model.Assistant(gens[0].Text, gens[0].ToolCalls...), false
	}

	var text string
	var calls []model.ToolCall
	for _, g := range gens {
		if g.Text != "" {
			if text != "" {
				text += "\n"
			}
			text += g.Text
		}
		calls = append(calls, g.ToolCalls...)
	}
	return model.Assistant(text, calls...), true
}

func applyHistory(transforms []HistoryTransformer, history []model.Message) []model.Message {
	out := history
	for _, t := range transforms {
		out = t(out)
	}
	return out
}
