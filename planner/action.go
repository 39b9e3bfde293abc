// Package planner implements the two planner variants of §4.6: a
// goal-directed best-first search over declared Actions, and a Supervisor
// that lets an LLM orchestrate the same Actions as curried tools inside a
// Tool Loop.
package planner

import "github.com/agentforge/agentforge/blackboard"

// Binding names an input or output slot an Action reads or writes, paired
// with the type name it requires or produces (§3 "Action").
type Binding struct {
	Name     string
	TypeName string
	// Optional marks an input binding that the dispatcher may leave unresolved
	// without failing the action (§4.7 step 1).
	Optional bool
}

// Action is a declared unit of work: a stable name, input/output bindings, a
// cost, an optional value, a precondition over the blackboard, and an
// executor (§3 "Action"). Executor is invoked by the Action Dispatcher
// (§4.7), not directly by the planner.
type Action struct {
	Name    string
	Inputs  []Binding
	Outputs []Binding
	Cost    float64
	// Value is summed over every action on a goal-directed search path and
	// subtracted from the path's summed Cost to form its priority; a higher
	// summed Value also breaks cost ties between paths and between ready Goal
	// Actions.
	Value float64
	// Precondition reports whether the action may run given the current
	// blackboard contents. A nil Precondition is always satisfied.
	Precondition func(bb *blackboard.Blackboard) bool
	// Executor performs the action's work. Set by the agent definition;
	// invoked by dispatcher.Dispatch, not by the planner itself.
	Executor any
	// Goal is non-nil for a Goal Action: the Goal this action achieves once
	// dispatched (§3 "A Goal Action additionally declares the goal it
	// achieves").
	Goal *Goal
}

// IsGoalAction reports whether a declares a goal it achieves.
func (a Action) IsGoalAction() bool { return a.Goal != nil }

// satisfied reports whether every non-optional input binding of a is
// resolvable against bb, by name or by type (§4.6 "precondition predicate
// over the blackboard").
func (a Action) satisfied(bb *blackboard.Blackboard) bool {
	if a.Precondition != nil && !a.Precondition(bb) {
		return false
	}
	for _, in := range a.Inputs {
		if in.Optional {
			continue
		}
		if in.Name != "" {
			if _, ok := bb.GetTyped(in.Name, in.TypeName); ok {
				continue
			}
			if _, ok := bb.Get(in.Name); ok {
				continue
			}
			return false
		}
		if _, ok := bb.FirstValueOfType(in.TypeName); !ok {
			return false
		}
	}
	return true
}

// apply returns a hypothetical blackboard reflecting a's declared outputs,
// for use by the search only -- it never mutates the real blackboard or
// invokes a's Executor (§4.6 treats actions as pure state-space operators
// during planning; only the Action Dispatcher performs real effects).
func (a Action) apply(bb *blackboard.Blackboard) *blackboard.Blackboard {
	next := blackboard.New()
	for _, obj := range bb.Objects() {
		next.Bind(obj.Name, obj.Value)
	}
	for _, out := range a.Outputs {
		name := out.Name
		if name == "" {
			name = blackboard.DefaultBinding
		}
		next.Bind(name, plannerPlaceholder{typeName: out.TypeName})
	}
	return next
}

// plannerPlaceholder stands in for an action's not-yet-produced output value
// during search: the search only needs to reason about *which types* become
// available, never about real values (those only exist once the Action
// Dispatcher actually runs the action).
type plannerPlaceholder struct{ typeName string }

// TypeName implements blackboard.TypeNamer so placeholders satisfy
// precondition/goal type checks exactly like the real value eventually will.
func (p plannerPlaceholder) TypeName() string { return p.typeName }

// Goal is a named postcondition over the blackboard with a ranking value
// (§3 "Goal"). Satisfied reports whether bb already carries a binding of
// TypeName.
type Goal struct {
	Name     string
	TypeName string
	Value    float64
}

// Satisfied implements the invariant "a goal is satisfied iff at least one
// binding of the goal's declared output type is present on the blackboard".
func (g Goal) Satisfied(bb *blackboard.Blackboard) bool { return bb.HasType(g.TypeName) }
