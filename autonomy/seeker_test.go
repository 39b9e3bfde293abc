package autonomy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/autonomy"
	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/dispatcher"
	"github.com/agentforge/agentforge/planner"
)

type ingredient struct{ Name string }
type dough struct{ Source string }
type bread struct{ Source string }
type meal struct{ Description string }
type cleanDesk struct{}

var (
	ingredientType = blackboard.TypeName(ingredient{})
	doughType      = blackboard.TypeName(dough{})
	breadType      = blackboard.TypeName(bread{})
	mealType       = blackboard.TypeName(meal{})
	cleanDeskType  = blackboard.TypeName(cleanDesk{})
)

type fakeRanker struct {
	scores map[string]float64
	err    error
}

func (f *fakeRanker) Rank(ctx context.Context, input string, goals []planner.Goal) (map[string]float64, error) {
	return f.scores, f.err
}

type fakeApprover struct {
	approve bool
	err     error
}

func (f *fakeApprover) Approve(ctx context.Context, goal planner.Goal, confidence float64) (bool, error) {
	return f.approve, f.err
}

func bakingActions() []planner.Action {
	return []planner.Action{
		{
			Name:    "makeDough",
			Inputs:  []planner.Binding{{TypeName: ingredientType}},
			Outputs: []planner.Binding{{TypeName: doughType}},
			Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
				in := inputs[ingredientType].(ingredient)
				return dough{Source: in.Name}, nil
			}),
		},
		{
			Name:    "bakeBread",
			Inputs:  []planner.Binding{{TypeName: doughType}},
			Outputs: []planner.Binding{{TypeName: breadType}},
			Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
				in := inputs[doughType].(dough)
				return bread{Source: in.Source}, nil
			}),
		},
		{
			Name:    "serveMeal",
			Inputs:  []planner.Binding{{TypeName: breadType}},
			Outputs: []planner.Binding{{TypeName: mealType}},
			Goal:    &planner.Goal{Name: "serveMeal", TypeName: mealType, Value: 10},
			Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
				in := inputs[breadType].(bread)
				return meal{Description: "a meal made from " + in.Source}, nil
			}),
		},
		// Irrelevant action for an unrelated goal; must not be pulled into
		// the synthetic agent for "serveMeal".
		{
			Name:    "tidyUp",
			Outputs: []planner.Binding{{TypeName: cleanDeskType}},
			Goal:    &planner.Goal{Name: "tidyUp", TypeName: cleanDeskType, Value: 1},
			Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
				return cleanDesk{}, nil
			}),
		},
	}
}

func TestRunRanksApprovesAndRunsSyntheticGoalAgent(t *testing.T) {
	actions := bakingActions()
	goals := []planner.Goal{
		{Name: "serveMeal", TypeName: mealType, Value: 10},
		{Name: "tidyUp", TypeName: cleanDeskType, Value: 1},
	}
	s := &autonomy.Seeker{
		Actions:          actions,
		Goals:            goals,
		Ranker:           &fakeRanker{scores: map[string]float64{"serveMeal": 0.9, "tidyUp": 0.2}},
		ConfidenceCutoff: 0.5,
	}

	out, err := s.Run(context.Background(), map[string]any{"it": ingredient{Name: "flour"}})
	require.NoError(t, err)
	m, ok := out.(meal)
	require.True(t, ok)
	assert.Equal(t, "a meal made from flour", m.Description)
}

func TestRunFailsWhenNoGoalAboveCutoff(t *testing.T) {
	s := &autonomy.Seeker{
		Actions:          bakingActions(),
		Goals:            []planner.Goal{{Name: "serveMeal", TypeName: mealType}},
		Ranker:           &fakeRanker{scores: map[string]float64{"serveMeal": 0.1}},
		ConfidenceCutoff: 0.5,
	}
	_, err := s.Run(context.Background(), map[string]any{"it": ingredient{Name: "flour"}})
	assert.ErrorIs(t, err, autonomy.ErrNoGoalAboveCutoff)
}

func TestRunFailsWhenApproverRejects(t *testing.T) {
	s := &autonomy.Seeker{
		Actions:          bakingActions(),
		Goals:            []planner.Goal{{Name: "serveMeal", TypeName: mealType}},
		Ranker:           &fakeRanker{scores: map[string]float64{"serveMeal": 0.9}},
		Approver:         &fakeApprover{approve: false},
		ConfidenceCutoff: 0.5,
	}
	_, err := s.Run(context.Background(), map[string]any{"it": ingredient{Name: "flour"}})
	assert.ErrorIs(t, err, autonomy.ErrGoalNotApproved)
}

func TestRunUsesSyntheticBindingTextWhenNoUserInputBound(t *testing.T) {
	var seen string
	ranker := &captureRanker{fakeRanker: fakeRanker{scores: map[string]float64{"serveMeal": 0.9}}, captured: &seen}
	s := &autonomy.Seeker{
		Actions:          bakingActions(),
		Goals:            []planner.Goal{{Name: "serveMeal", TypeName: mealType}},
		Ranker:           ranker,
		ConfidenceCutoff: 0.5,
	}
	_, err := s.Run(context.Background(), map[string]any{"it": ingredient{Name: "flour"}})
	require.NoError(t, err)
	assert.Contains(t, seen, ingredientType)
}

type captureRanker struct {
	fakeRanker
	captured *string
}

func (c *captureRanker) Rank(ctx context.Context, input string, goals []planner.Goal) (map[string]float64, error) {
	*c.captured = input
	return c.fakeRanker.scores, c.fakeRanker.err
}
