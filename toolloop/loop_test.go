package toolloop_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/llm"
	"github.com/agentforge/agentforge/llm/model"
	"github.com/agentforge/agentforge/signals"
	"github.com/agentforge/agentforge/toolloop"
	"github.com/agentforge/agentforge/tools"
)

type scriptedSender struct {
	calls   int
	results []model.CallResult
}

func (s *scriptedSender) Send(ctx context.Context, history []model.Message, defs []model.ToolDefinition, opts llm.Options) (model.CallResult, error) {
	r := s.results[s.calls]
	s.calls++
	return r, nil
}

func echoTool(name string, returnDirect bool) tools.Tool {
	return tools.Func{
		Def:  tools.Definition{Name: name},
		Meta: tools.Metadata{ReturnDirect: returnDirect},
		Fn: func(ctx context.Context, input string) (tools.Result, error) {
			return tools.Text("echo:" + input), nil
		},
	}
}

func TestLoopTerminatesOnZeroToolCalls(t *testing.T) {
	sender := &scriptedSender{results: []model.CallResult{
		{Generations: []model.Generation{{Text: "final answer"}}},
	}}
	var afterIterations [][]model.ToolCall
	loop := toolloop.New(sender, nil, toolloop.Options{
		Inspectors: toolloop.Inspectors{
			AfterIteration: func(_ context.Context, _ int, calls []model.ToolCall) {
				afterIterations = append(afterIterations, calls)
			},
		},
	})

	out, err := loop.Run(context.Background(), []model.Message{model.User("hi")}, llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "final answer", out.Answer)
	require.Len(t, afterIterations, 1)
	assert.Empty(t, afterIterations[0])
}

func TestLoopFoldsMultipleGenerationsAndUnionsToolCalls(t *testing.T) {
	sender := &scriptedSender{results: []model.CallResult{
		{Generations: []model.Generation{
			{Text: "part one", ToolCalls: []model.ToolCall{{ID: "1", Name: "search", Arguments: "{}"}}},
			{Text: "part two"},
		}},
		{Generations: []model.Generation{{Text: "done"}}},
	}}
	loop := toolloop.New(sender, []tools.Tool{echoTool("search", false)}, toolloop.Options{})

	out, err := loop.Run(context.Background(), []model.Message{model.User("go")}, llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "done", out.Answer)

	var sawAssistant bool
	for _, m := range out.History {
		if m.Role == model.RoleAssistant && m.Content == "part one\npart two" {
			sawAssistant = true
		}
	}
	assert.True(t, sawAssistant, "folded assistant message should concatenate generation texts")
}

func TestLoopReturnsDirectResultWithoutFurtherLLMCalls(t *testing.T) {
	sender := &scriptedSender{results: []model.CallResult{
		{Generations: []model.Generation{{ToolCalls: []model.ToolCall{{ID: "1", Name: "final", Arguments: "{}"}}}}},
	}}
	loop := toolloop.New(sender, []tools.Tool{echoTool("final", true)}, toolloop.Options{})

	out, err := loop.Run(context.Background(), []model.Message{model.User("go")}, llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "echo:{}", out.Answer)
	assert.Equal(t, 1, sender.calls, "returnDirect must short-circuit without another LLM round trip")
}

func TestLoopUnknownToolSynthesizesErrorResult(t *testing.T) {
	sender := &scriptedSender{results: []model.CallResult{
		{Generations: []model.Generation{{ToolCalls: []model.ToolCall{{ID: "1", Name: "missing", Arguments: "{}"}}}}},
		{Generations: []model.Generation{{Text: "ok"}}},
	}}
	loop := toolloop.New(sender, nil, toolloop.Options{})

	out, err := loop.Run(context.Background(), []model.Message{model.User("go")}, llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Answer)

	found := false
	for _, m := range out.History {
		if m.Role == model.RoleTool && m.IsError {
			assert.Contains(t, m.Content, `unknown tool "missing"`)
			found = true
		}
	}
	assert.True(t, found)
}

func TestLoopHitsMaxIterationsLimit(t *testing.T) {
	result := model.CallResult{Generations: []model.Generation{{ToolCalls: []model.ToolCall{{ID: "1", Name: "search", Arguments: "{}"}}}}}
	sender := &scriptedSender{results: []model.CallResult{result, result, result}}
	loop := toolloop.New(sender, []tools.Tool{echoTool("search", false)}, toolloop.Options{MaxIterations: 3})

	_, err := loop.Run(context.Background(), []model.Message{model.User("go")}, llm.Options{})
	assert.ErrorIs(t, err, signals.ErrToolLoopLimit)
}

func TestLoopPropagatesControlFlowSignalFromTool(t *testing.T) {
	signal := signals.NewUserInputRequired("need more info")
	tool := tools.Func{
		Def: tools.Definition{Name: "ask"},
		Fn: func(ctx context.Context, input string) (tools.Result, error) {
			return tools.Result{}, signal
		},
	}
	sender := &scriptedSender{results: []model.CallResult{
		{Generations: []model.Generation{{ToolCalls: []model.ToolCall{{ID: "1", Name: "ask", Arguments: "{}"}}}}},
	}}
	loop := toolloop.New(sender, []tools.Tool{tool}, toolloop.Options{})

	_, err := loop.Run(context.Background(), []model.Message{model.User("go")}, llm.Options{})
	require.Error(t, err)
	var uir *signals.UserInputRequired
	assert.ErrorAs(t, err, &uir)
}
