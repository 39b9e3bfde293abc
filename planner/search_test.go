package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/planner"
	"github.com/agentforge/agentforge/signals"
)

type rawInput struct{}
type parsed struct{}
type enriched struct{}
type report struct{}

func TestGoalDirectedFindsThreeStepPlan(t *testing.T) {
	bb := blackboard.New()
	bb.Bind("it", rawInput{})

	rawType := blackboard.TypeName(rawInput{})
	parsedType := blackboard.TypeName(parsed{})
	enrichedType := blackboard.TypeName(enriched{})
	reportType := blackboard.TypeName(report{})

	fetch := planner.Action{
		Name:    "fetch",
		Inputs:  []planner.Binding{{Name: "it", TypeName: rawType}},
		Outputs: []planner.Binding{{Name: "parsed", TypeName: parsedType}},
		Cost:    1,
	}
	enrich := planner.Action{
		Name:    "enrich",
		Inputs:  []planner.Binding{{Name: "parsed", TypeName: parsedType}},
		Outputs: []planner.Binding{{Name: "enriched", TypeName: enrichedType}},
		Cost:    1,
	}
	goal := planner.Goal{Name: "report-ready", TypeName: reportType, Value: 10}
	summarize := planner.Action{
		Name:    "summarize",
		Inputs:  []planner.Binding{{Name: "enriched", TypeName: enrichedType}},
		Outputs: []planner.Binding{{Name: "report", TypeName: reportType}},
		Cost:    1,
		Goal:    &goal,
	}

	p := planner.NewGoalDirected([]planner.Action{fetch, enrich, summarize}, goal)

	step, ok, err := p.Plan(bb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fetch", step.Name)
}

func TestGoalDirectedReportsGoalSatisfied(t *testing.T) {
	bb := blackboard.New()
	bb.Bind("report", report{})
	goal := planner.Goal{Name: "done", TypeName: blackboard.TypeName(report{})}
	p := planner.NewGoalDirected(nil, goal)

	_, ok, err := p.Plan(bb)
	require.NoError(t, err)
	assert.False(t, ok, "planner must report the goal already satisfied rather than returning a step")
}

func TestGoalDirectedFailsWithNoPlanFound(t *testing.T) {
	bb := blackboard.New()
	goal := planner.Goal{Name: "unreachable", TypeName: blackboard.TypeName(report{})}
	p := planner.NewGoalDirected([]planner.Action{{Name: "noop", Cost: 1}}, goal)

	_, ok, err := p.Plan(bb)
	assert.False(t, ok)
	assert.ErrorIs(t, err, signals.ErrNoPlanFound)
}

func TestGoalDirectedPrefersLowerCostPath(t *testing.T) {
	bb := blackboard.New()
	goal := planner.Goal{Name: "g", TypeName: blackboard.TypeName(report{})}
	cheap := planner.Action{Name: "cheap", Outputs: []planner.Binding{{Name: "report", TypeName: goal.TypeName}}, Cost: 1, Goal: &goal}
	expensive := planner.Action{Name: "expensive", Outputs: []planner.Binding{{Name: "report", TypeName: goal.TypeName}}, Cost: 5, Goal: &goal}

	p := planner.NewGoalDirected([]planner.Action{cheap, expensive}, goal)
	step, ok, err := p.Plan(bb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cheap", step.Name, "lower total cost must win when both paths reach the goal in one step")
}
