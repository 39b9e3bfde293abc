// Package dispatcher implements the Action Dispatcher of §4.7: resolve an
// action's inputs from the blackboard, invoke its executor, write the
// outputs back, and emit ActionFinished. It also implements
// planner.ActionRunner so the Supervisor planner can drive the same
// dispatch path from inside a curried tool call (§4.6).
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/eventbus"
	"github.com/agentforge/agentforge/planner"
	"github.com/agentforge/agentforge/signals"
	"github.com/agentforge/agentforge/tools"
)

// Executor is the function signature an Action's Executor field must hold.
// ctx carries the ambient process (tooldeco.ProcessHandle, via the caller);
// inputs is the resolved input map, keyed by binding name for inputs that
// declare one and by type name for inputs resolved by type.
//
// Executor returns either:
//   - a single domain object, to be bound under the action's default output
//     name (blackboard.DefaultBinding if the action declares none), or
//   - an Updates value, an explicit list of (name, value) pairs.
type Executor func(ctx context.Context, inputs map[string]any) (any, error)

// Update is one (binding name, value) pair an Executor may return explicitly
// instead of a single domain object (§4.7 step 3 option (b)).
type Update struct {
	Name  string
	Value any
}

// Updates is returned by an Executor that writes more than one binding.
type Updates []Update

// Dispatcher resolves inputs, invokes executors, and writes results to a
// Blackboard, one action at a time (§4.7; §5 "at most one action runs at a
// time within a process").
type Dispatcher struct {
	Bus    eventbus.Bus
	Logger *slog.Logger
}

// New constructs a Dispatcher. bus may be nil (no events emitted); logger
// defaults to slog.Default() if nil.
func New(bus eventbus.Bus, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{Bus: bus, Logger: logger}
}

// Dispatch runs action against bb: resolves its declared inputs, invokes its
// executor, and writes the returned outputs back to bb (§4.7 steps 1-4).
// processID is used only to tag emitted events.
func (d *Dispatcher) Dispatch(ctx context.Context, processID string, bb *blackboard.Blackboard, action planner.Action) error {
	exec, ok := action.Executor.(Executor)
	if !ok {
		return signals.Newf("action %q has no Executor of type dispatcher.Executor", action.Name).WithCode("invalid_action")
	}

	inputs, err := resolveInputs(bb, action.Inputs)
	if err != nil {
		return err
	}

	d.publish(ctx, eventbus.Event{Kind: eventbus.ActionStarted, ProcessID: processID, ActionName: action.Name})
	start := time.Now()

	result, err := exec(ctx, inputs)
	duration := time.Since(start)

	if err != nil {
		if signals.IsControlFlow(err) {
			return err
		}
		return signals.WithCause(fmt.Sprintf("action %q failed", action.Name), err)
	}

	writeOutputs(bb, action, result)

	d.publish(ctx, eventbus.Event{
		Kind:       eventbus.ActionFinished,
		ProcessID:  processID,
		ActionName: action.Name,
		Duration:   duration,
	})
	return nil
}

// resolveInputs implements §4.7 step 1: for each declared input binding, use
// the binding name if the action specifies one, else look up by type in
// blackboard insertion order. A missing non-optional input is fatal.
func resolveInputs(bb *blackboard.Blackboard, bindings []planner.Binding) (map[string]any, error) {
	inputs := make(map[string]any, len(bindings))
	for _, in := range bindings {
		if in.Name != "" {
			if v, ok := bb.Get(in.Name); ok {
				inputs[in.Name] = v
				continue
			}
			if in.Optional {
				continue
			}
			return nil, signals.WithCause(fmt.Sprintf("missing required input %q", in.Name), signals.ErrMissingInput)
		}
		v, ok := bb.FirstValueOfType(in.TypeName)
		if !ok {
			if in.Optional {
				continue
			}
			return nil, signals.WithCause(fmt.Sprintf("missing required input of type %q", in.TypeName), signals.ErrMissingInput)
		}
		inputs[in.TypeName] = v
	}
	return inputs, nil
}

// writeOutputs implements §4.7 step 3: result is either a single domain
// object (bound under the action's declared output name, default "it") or an
// explicit Updates list.
func writeOutputs(bb *blackboard.Blackboard, action planner.Action, result any) {
	if updates, ok := result.(Updates); ok {
		for _, u := range updates {
			bb.Bind(u.Name, u.Value)
		}
		return
	}

	name := blackboard.DefaultBinding
	if len(action.Outputs) > 0 && action.Outputs[0].Name != "" {
		name = action.Outputs[0].Name
	}
	bb.Bind(name, result)
}

func (d *Dispatcher) publish(ctx context.Context, ev eventbus.Event) {
	if d.Bus == nil {
		return
	}
	d.Bus.Publish(ctx, ev)
}

// Run implements planner.ActionRunner: it dispatches action against bb after
// merging overrides -- LLM-supplied values for the action's curried
// parameters (§4.6) -- into a temporary view so the action's Executor sees
// them alongside whatever the blackboard already resolves, then returns a
// tools.Result summarizing the outcome for display back to the model.
func (d *Dispatcher) Run(ctx context.Context, bb *blackboard.Blackboard, action planner.Action, overrides map[string]any) (tools.Result, error) {
	exec, ok := action.Executor.(Executor)
	if !ok {
		return tools.Result{}, signals.Newf("action %q has no Executor of type dispatcher.Executor", action.Name).WithCode("invalid_action")
	}

	inputs, err := resolveInputs(bb, action.Inputs)
	if err != nil {
		return tools.Result{}, err
	}
	for k, v := range overrides {
		inputs[k] = v
	}

	result, err := exec(ctx, inputs)
	if err != nil {
		if signals.IsControlFlow(err) {
			return tools.Result{}, err
		}
		return tools.ErrorResult(fmt.Sprintf("action %q failed: %s", action.Name, err.Error())), nil
	}

	writeOutputs(bb, action, result)
	return tools.Text(fmt.Sprintf("%q completed", action.Name)), nil
}
