package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/llm"
	"github.com/agentforge/agentforge/llm/model"
	"github.com/agentforge/agentforge/signals"
	"github.com/agentforge/agentforge/tooldeco"
	"github.com/agentforge/agentforge/toolloop"
	"github.com/agentforge/agentforge/tools"
)

// ActionRunner performs the real effect of dispatching action against bb,
// after merging overrides (LLM-supplied values for the action's curried
// parameters) on top of what the blackboard already resolves. Implemented by
// package dispatcher; defined here as a minimal interface (mirroring
// tooldeco.ProcessHandle) so planner never imports dispatcher.
type ActionRunner interface {
	Run(ctx context.Context, bb *blackboard.Blackboard, action Action, overrides map[string]any) (tools.Result, error)
}

// Supervisor implements the second planner variant of §4.6: it synthesizes
// one curried tool per non-goal action and lets the LLM, inside a Tool Loop,
// orchestrate calls directly. The Goal Action is never exposed as a tool; it
// is run separately, once its inputs are satisfied, by Supervisor.Run once
// the loop produces a terminal answer.
type Supervisor struct {
	Actions []Action
	Goal    Goal
	Sender  llm.Sender
	Runner  ActionRunner
	Options tooldeco.Options
	LLMOpts llm.Options
	Loop    toolloop.Options
	Logger  *slog.Logger
}

// NewSupervisor constructs a Supervisor. actions should include the Goal
// Action; it is filtered out of the curried tool set automatically.
func NewSupervisor(actions []Action, goal Goal, sender llm.Sender, runner ActionRunner) *Supervisor {
	return &Supervisor{Actions: actions, Goal: goal, Sender: sender, Runner: runner, Logger: slog.Default()}
}

// curriedTools builds one tools.Tool per non-goal action whose precondition
// currently holds or can plausibly be completed by the model, removing from
// each tool's input schema every parameter already resolvable from bb (the
// "currying" of §4.6). Duplicate curried tool names across actions are
// rejected with signals.ErrDuplicateToolName, per the Open Questions
// resolution recorded in DESIGN.md.
func (s *Supervisor) curriedTools(bb *blackboard.Blackboard) ([]tools.Tool, error) {
	seen := make(map[string]bool, len(s.Actions))
	out := make([]tools.Tool, 0, len(s.Actions))

	for _, a := range s.Actions {
		if a.IsGoalAction() {
			continue
		}
		if a.Precondition != nil && !a.Precondition(bb) {
			continue
		}
		if seen[a.Name] {
			return nil, signals.ErrDuplicateToolName
		}
		seen[a.Name] = true
		out = append(out, s.curryOne(a, bb))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Definition().Name < out[j].Definition().Name })
	return out, nil
}

func (s *Supervisor) curryOne(a Action, bb *blackboard.Blackboard) tools.Tool {
	properties := make(map[string]any)
	var required []string
	remaining := make(map[string]Binding)

	for _, in := range a.Inputs {
		if in.Name == "" {
			continue
		}
		if _, ok := bb.Get(in.Name); ok {
			continue // curried away: already resolvable from the blackboard
		}
		properties[in.Name] = map[string]any{"type": "string", "description": in.TypeName}
		remaining[in.Name] = in
		if !in.Optional {
			required = append(required, in.Name)
		}
	}

	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}

	action := a
	runner := s.Runner
	return tools.Func{
		Def: tools.Definition{Name: action.Name, Description: actionDescription(action), InputSchema: schema},
		Fn: func(ctx context.Context, input string) (tools.Result, error) {
			overrides := map[string]any{}
			if input != "" {
				if err := json.Unmarshal([]byte(input), &overrides); err != nil {
					return tools.ErrorResult(fmt.Sprintf("invalid arguments for %s: %s", action.Name, err.Error())), nil
				}
			}
			return runner.Run(ctx, bb, action, overrides)
		},
	}
}

func actionDescription(a Action) string {
	return fmt.Sprintf("Invoke the %q action (cost %.2f).", a.Name, a.Cost)
}

// Run drives the Tool Loop over the curried action set until it produces a
// terminal answer, then -- if the Goal Action's precondition holds and its
// inputs are resolvable -- dispatches the Goal Action separately, as §4.6
// requires ("The goal action is not exposed as a tool; it is run separately
// once its inputs are satisfied").
func (s *Supervisor) Run(ctx context.Context, bb *blackboard.Blackboard, history []model.Message) (tools.Result, error) {
	curried, err := s.curriedTools(bb)
	if err != nil {
		return tools.Result{}, err
	}

	decorated := make([]tools.Tool, len(curried))
	for i, t := range curried {
		decorated[i] = tooldeco.Decorate(t, s.Options)
	}

	loop := toolloop.New(s.Sender, decorated, s.Loop)
	outcome, err := loop.Run(ctx, history, s.LLMOpts)
	if err != nil {
		return tools.Result{}, err
	}

	goalAction := s.goalAction()
	if goalAction == nil || !goalAction.satisfied(bb) {
		return tools.Text(outcome.Answer), nil
	}
	return s.Runner.Run(ctx, bb, *goalAction, nil)
}

func (s *Supervisor) goalAction() *Action {
	for i := range s.Actions {
		if s.Actions[i].IsGoalAction() && s.Actions[i].Goal.Name == s.Goal.Name {
			return &s.Actions[i]
		}
	}
	return nil
}
