package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/llm"
	"github.com/agentforge/agentforge/llm/model"
	"github.com/agentforge/agentforge/planner"
	"github.com/agentforge/agentforge/signals"
	"github.com/agentforge/agentforge/tools"
)

type fakeRunner struct {
	calls []string
	bind  func(bb *blackboard.Blackboard, action planner.Action, overrides map[string]any)
}

func (r *fakeRunner) Run(ctx context.Context, bb *blackboard.Blackboard, action planner.Action, overrides map[string]any) (tools.Result, error) {
	r.calls = append(r.calls, action.Name)
	if r.bind != nil {
		r.bind(bb, action, overrides)
	}
	return tools.Text("ran " + action.Name), nil
}

type scriptedSupervisorSender struct {
	scripts []model.CallResult
	i       int
}

func (s *scriptedSupervisorSender) Send(ctx context.Context, history []model.Message, defs []model.ToolDefinition, opts llm.Options) (model.CallResult, error) {
	r := s.scripts[s.i]
	s.i++
	return r, nil
}

func TestSupervisorReturnsLoopAnswerWhileGoalActionInputsUnsatisfied(t *testing.T) {
	bb := blackboard.New()
	goal := planner.Goal{Name: "done", TypeName: blackboard.TypeName(report{})}
	search := planner.Action{Name: "search", Cost: 1}
	answer := planner.Action{
		Name:   "answer",
		Goal:   &goal,
		Cost:   1,
		Inputs: []planner.Binding{{Name: "findings", TypeName: blackboard.TypeName(parsed{})}},
	}

	sender := &scriptedSupervisorSender{scripts: []model.CallResult{
		{Generations: []model.Generation{{Text: "no tools needed"}}},
	}}
	runner := &fakeRunner{}
	sup := planner.NewSupervisor([]planner.Action{search, answer}, goal, sender, runner)

	res, err := sup.Run(context.Background(), bb, []model.Message{model.User("go")})
	require.NoError(t, err)
	assert.Equal(t, "no tools needed", res.AsString(), "goal action's inputs are unsatisfied, so Run returns the loop's plain answer")
	assert.Empty(t, runner.calls)
}

func TestSupervisorRunsGoalActionSeparatelyOnceReady(t *testing.T) {
	bb := blackboard.New()
	bb.Bind("ready", rawInput{})
	goal := planner.Goal{Name: "done", TypeName: blackboard.TypeName(report{})}
	answer := planner.Action{
		Name:    "answer",
		Goal:    &goal,
		Inputs:  []planner.Binding{{Name: "ready", TypeName: blackboard.TypeName(rawInput{})}},
		Outputs: []planner.Binding{{Name: "report", TypeName: blackboard.TypeName(report{})}},
	}

	sender := &scriptedSupervisorSender{scripts: []model.CallResult{
		{Generations: []model.Generation{{Text: "all set"}}},
	}}
	runner := &fakeRunner{bind: func(bb *blackboard.Blackboard, action planner.Action, overrides map[string]any) {
		bb.Bind("report", report{})
	}}
	sup := planner.NewSupervisor([]planner.Action{answer}, goal, sender, runner)

	res, err := sup.Run(context.Background(), bb, []model.Message{model.User("go")})
	require.NoError(t, err)
	assert.Equal(t, "ran answer", res.AsString())
	assert.Equal(t, []string{"answer"}, runner.calls)
}

func TestSupervisorCurriedToolInvokesRunnerWithParsedArguments(t *testing.T) {
	bb := blackboard.New()
	goal := planner.Goal{Name: "done", TypeName: blackboard.TypeName(report{})}
	search := planner.Action{
		Name:   "search",
		Inputs: []planner.Binding{{Name: "query", TypeName: "string"}},
		Cost:   1,
	}

	var sawOverrides map[string]any
	runner := &fakeRunner{bind: func(bb *blackboard.Blackboard, action planner.Action, overrides map[string]any) {
		if action.Name == "search" {
			sawOverrides = overrides
		}
	}}
	sender := &scriptedSupervisorSender{scripts: []model.CallResult{
		{Generations: []model.Generation{{ToolCalls: []model.ToolCall{{ID: "1", Name: "search", Arguments: `{"query":"weather"}`}}}}},
		{Generations: []model.Generation{{Text: "done"}}},
	}}
	sup := planner.NewSupervisor([]planner.Action{search, {Name: "answer", Goal: &goal}}, goal, sender, runner)

	_, err := sup.Run(context.Background(), bb, []model.Message{model.User("go")})
	require.NoError(t, err)
	require.NotNil(t, sawOverrides)
	assert.Equal(t, "weather", sawOverrides["query"])
}

func TestSupervisorRejectsDuplicateCurriedToolNames(t *testing.T) {
	bb := blackboard.New()
	goal := planner.Goal{Name: "done", TypeName: blackboard.TypeName(report{})}
	dup1 := planner.Action{Name: "search", Cost: 1}
	dup2 := planner.Action{Name: "search", Cost: 2}

	runner := &fakeRunner{}
	sender := &scriptedSupervisorSender{}
	sup := planner.NewSupervisor([]planner.Action{dup1, dup2}, goal, sender, runner)

	_, err := sup.Run(context.Background(), bb, []model.Message{model.User("go")})
	assert.ErrorIs(t, err, signals.ErrDuplicateToolName)
}
