package tooldeco_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/eventbus"
	"github.com/agentforge/agentforge/signals"
	"github.com/agentforge/agentforge/tooldeco"
	"github.com/agentforge/agentforge/tools"
)

type fakeProcess struct{ id string }

func (p fakeProcess) ProcessID() string { return p.id }

func okTool(name string) tools.Tool {
	return tools.Func{
		Def: tools.Definition{Name: name},
		Fn: func(ctx context.Context, input string) (tools.Result, error) {
			return tools.Text("ok:" + input), nil
		},
	}
}

func failingTool(name string, err error) tools.Tool {
	return tools.Func{
		Def: tools.Definition{Name: name},
		Fn: func(ctx context.Context, input string) (tools.Result, error) {
			return tools.Result{}, err
		},
	}
}

func TestDecoratedToolKeepsDefinitionName(t *testing.T) {
	d := tooldeco.Decorate(okTool("search"), tooldeco.Options{})
	assert.Equal(t, "search", d.Definition().Name)
}

func TestOrdinaryErrorIsSuppressedIntoTextResult(t *testing.T) {
	d := tooldeco.Decorate(failingTool("search", errors.New("boom")), tooldeco.Options{})
	res, err := d.Call(context.Background(), "{}")
	require.NoError(t, err)
	assert.Contains(t, res.Content, "WARNING: Tool 'search' failed with exception: boom")
}

func TestControlFlowSignalEscapesEveryLayer(t *testing.T) {
	signal := signals.NewReplanRequested("tool wants a replan")
	d := tooldeco.Decorate(failingTool("search", signal), tooldeco.Options{})
	_, err := d.Call(context.Background(), "{}")
	require.Error(t, err)
	var replan *signals.ReplanRequested
	assert.ErrorAs(t, err, &replan)
}

func TestEventPublishingEmitsRequestAndResponse(t *testing.T) {
	bus := eventbus.New(nil)
	var kinds []eventbus.Kind
	bus.Register(eventbus.ListenerFunc(func(_ context.Context, e eventbus.Event) error {
		kinds = append(kinds, e.Kind)
		return nil
	}))

	d := tooldeco.Decorate(okTool("search"), tooldeco.Options{Bus: bus})
	_, err := d.Call(context.Background(), "{}")
	require.NoError(t, err)
	assert.Equal(t, []eventbus.Kind{eventbus.ToolCallRequest, eventbus.ToolCallResponse}, kinds)
}

func TestProcessBindingMakesAmbientProcessAvailableToInnerCall(t *testing.T) {
	var seenID string
	inner := tools.Func{
		Def: tools.Definition{Name: "inspect"},
		Fn: func(ctx context.Context, input string) (tools.Result, error) {
			if p := tooldeco.ProcessFromContext(ctx); p != nil {
				seenID = p.ProcessID()
			}
			return tools.Text("ok"), nil
		},
	}
	d := tooldeco.Decorate(inner, tooldeco.Options{Process: fakeProcess{id: "proc-1"}})

	before := tooldeco.ProcessFromContext(context.Background())
	_, err := d.Call(context.Background(), "{}")
	require.NoError(t, err)
	after := tooldeco.ProcessFromContext(context.Background())

	assert.Equal(t, "proc-1", seenID)
	assert.Nil(t, before)
	assert.Nil(t, after, "the caller's own context must not be mutated by ProcessBinding")
}

func TestOutputTransformingAppliesConfiguredTransform(t *testing.T) {
	d := tooldeco.Decorate(okTool("search"), tooldeco.Options{
		Transform: func(s string) string { return s[:4] },
	})
	res, err := d.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok:h", res.Content)
}
