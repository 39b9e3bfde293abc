package dispatcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/dispatcher"
	"github.com/agentforge/agentforge/eventbus"
	"github.com/agentforge/agentforge/planner"
	"github.com/agentforge/agentforge/signals"
)

type widget struct{ Name string }

func TestDispatchResolvesInputsByNameInvokesAndWritesDefaultOutput(t *testing.T) {
	bb := blackboard.New()
	bb.Bind("raw", "hello")

	action := planner.Action{
		Name:   "greet",
		Inputs: []planner.Binding{{Name: "raw", TypeName: "string"}},
		Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
			return widget{Name: inputs["raw"].(string) + "!"}, nil
		}),
	}

	d := dispatcher.New(nil, nil)
	err := d.Dispatch(context.Background(), "proc-1", bb, action)
	require.NoError(t, err)

	v, ok := bb.Get(blackboard.DefaultBinding)
	require.True(t, ok)
	assert.Equal(t, widget{Name: "hello!"}, v)
}

func TestDispatchWritesExplicitUpdates(t *testing.T) {
	bb := blackboard.New()
	action := planner.Action{
		Name: "split",
		Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
			return dispatcher.Updates{{Name: "a", Value: 1}, {Name: "b", Value: 2}}, nil
		}),
	}

	d := dispatcher.New(nil, nil)
	require.NoError(t, d.Dispatch(context.Background(), "proc-1", bb, action))

	a, _ := bb.Get("a")
	b, _ := bb.Get("b")
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestDispatchMissingRequiredInputFails(t *testing.T) {
	bb := blackboard.New()
	action := planner.Action{
		Name:   "needs-input",
		Inputs: []planner.Binding{{Name: "missing", TypeName: "string"}},
		Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
			t.Fatal("executor must not run when a required input is missing")
			return nil, nil
		}),
	}

	d := dispatcher.New(nil, nil)
	err := d.Dispatch(context.Background(), "proc-1", bb, action)
	assert.ErrorIs(t, err, signals.ErrMissingInput)
}

func TestDispatchOptionalInputMayBeAbsent(t *testing.T) {
	bb := blackboard.New()
	var sawInputs map[string]any
	action := planner.Action{
		Name:   "optional-input",
		Inputs: []planner.Binding{{Name: "missing", TypeName: "string", Optional: true}},
		Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
			sawInputs = inputs
			return widget{Name: "ok"}, nil
		}),
	}

	d := dispatcher.New(nil, nil)
	require.NoError(t, d.Dispatch(context.Background(), "proc-1", bb, action))
	_, ok := sawInputs["missing"]
	assert.False(t, ok)
}

func TestDispatchEmitsActionStartedAndFinished(t *testing.T) {
	bb := blackboard.New()
	bus := eventbus.New(nil)
	var kinds []eventbus.Kind
	bus.Register(eventbus.ListenerFunc(func(_ context.Context, e eventbus.Event) error {
		kinds = append(kinds, e.Kind)
		return nil
	}))

	action := planner.Action{
		Name: "noop",
		Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
			return widget{}, nil
		}),
	}

	d := dispatcher.New(bus, nil)
	require.NoError(t, d.Dispatch(context.Background(), "proc-1", bb, action))
	assert.Equal(t, []eventbus.Kind{eventbus.ActionStarted, eventbus.ActionFinished}, kinds)
}

func TestDispatchPropagatesControlFlowSignalWithoutWritingOutputs(t *testing.T) {
	bb := blackboard.New()
	signal := signals.NewReplanRequested("need a different approach")
	action := planner.Action{
		Name: "risky",
		Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
			return nil, signal
		}),
	}

	d := dispatcher.New(nil, nil)
	err := d.Dispatch(context.Background(), "proc-1", bb, action)
	require.Error(t, err)
	var replan *signals.ReplanRequested
	assert.ErrorAs(t, err, &replan)
	_, ok := bb.Get(blackboard.DefaultBinding)
	assert.False(t, ok, "dispatch must abort without writing outputs on a control-flow signal")
}

func TestRunImplementsActionRunnerForSupervisor(t *testing.T) {
	bb := blackboard.New()
	action := planner.Action{
		Name:   "curried",
		Inputs: []planner.Binding{{Name: "query", TypeName: "string"}},
		Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
			return widget{Name: inputs["query"].(string)}, nil
		}),
	}

	d := dispatcher.New(nil, nil)
	res, err := d.Run(context.Background(), bb, action, map[string]any{"query": "weather"})
	require.NoError(t, err)
	assert.Contains(t, res.AsString(), "curried")

	v, ok := bb.Get(blackboard.DefaultBinding)
	require.True(t, ok)
	assert.Equal(t, widget{Name: "weather"}, v)
}
