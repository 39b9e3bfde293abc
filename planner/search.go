package planner

import (
	"container/heap"
	"sort"

	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/signals"
)

// Planner is satisfied by the goal-directed variant of §4.6 (GoalDirected):
// given the current blackboard state, decide the next action (or report the
// goal is already satisfied). The Supervisor variant has no Plan method and
// is driven through Supervisor.Run instead.
type Planner interface {
	// Plan returns the single next step to dispatch, or ok=false if goal is
	// already satisfied. A non-nil error is signals.ErrNoPlanFound when no
	// path reaches the goal, or any other error for a fatal planner failure.
	Plan(bb *blackboard.Blackboard) (step Action, ok bool, err error)
}

// DefaultMaxVisitedStates bounds the goal-directed search's visited-state set
// (§4.6 "the search bounds visited states and fails with NoPlanFound").
const DefaultMaxVisitedStates = 10000

// GoalDirected implements the best-first search variant of §4.6: treats each
// non-goal action as a state-space operator and the goal action as the
// target, searching for the least-cost path to goal satisfaction.
type GoalDirected struct {
	Actions  []Action
	Goal     Goal
	MaxVisited int
}

// NewGoalDirected constructs a GoalDirected planner. actions should include
// the Goal Action; goal identifies the target postcondition.
func NewGoalDirected(actions []Action, goal Goal) *GoalDirected {
	return &GoalDirected{Actions: actions, Goal: goal, MaxVisited: DefaultMaxVisitedStates}
}

// searchNode is one frontier entry: the hypothetical blackboard reached by
// taking path, and the priority accumulated so far.
type searchNode struct {
	bb    *blackboard.Blackboard
	path  []Action
	cost  float64
	value float64
}

// priority is the search's ranking key: lower total cost minus produced
// value wins (§4.6 "priority = Σ action.cost − Σ (produced goal.value)").
func (n *searchNode) priority() float64 { return n.cost - n.value }

type frontier []*searchNode

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	a, b := f[i], f[j]
	pa, pb := a.priority(), b.priority()
	if pa != pb {
		return pa < pb
	}
	if a.value != b.value {
		return a.value > b.value
	}
	return lastActionName(a.path) < lastActionName(b.path)
}
func (f frontier) Swap(i, j int)       { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)         { *f = append(*f, x.(*searchNode)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return item
}

// bestReadyGoalAction returns the lowest-(node.cost+action.Cost) goal action
// whose inputs are already satisfied at node, breaking ties by higher value
// then lexicographic name, matching the search's own tie-break rule.
func bestReadyGoalAction(candidates []Action, node *searchNode) (Action, bool) {
	var best Action
	var bestCost, bestValue float64
	found := false
	for _, a := range candidates {
		if !a.satisfied(node.bb) {
			continue
		}
		cost := node.cost + a.Cost
		value := node.value + a.Value
		if !found || cost < bestCost || (cost == bestCost && value > bestValue) ||
			(cost == bestCost && value == bestValue && a.Name < best.Name) {
			best, bestCost, bestValue, found = a, cost, value, true
		}
	}
	return best, found
}

func lastActionName(path []Action) string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1].Name
}

// candidateKey identifies a search state by the set of type names it carries,
// used to dedupe the visited set (§4.6 "dead-ends, non-unique goals, and
// cyclic plans must terminate").
func candidateKey(bb *blackboard.Blackboard) string {
	names := make([]string, 0)
	for _, obj := range bb.Objects() {
		names = append(names, obj.TypeName)
	}
	sort.Strings(names)
	key := ""
	for _, n := range names {
		key += n + "|"
	}
	return key
}

// Plan runs the best-first search from bb and returns the first step of the
// least-cost path to r.Goal, or signals.ErrNoPlanFound if none exists within
// the visited-state bound.
func (r *GoalDirected) Plan(bb *blackboard.Blackboard) (Action, bool, error) {
	if r.Goal.Satisfied(bb) {
		return Action{}, false, nil
	}

	maxVisited := r.MaxVisited
	if maxVisited <= 0 {
		maxVisited = DefaultMaxVisitedStates
	}

	nonGoal := make([]Action, 0, len(r.Actions))
	var goalActions []Action
	for i := range r.Actions {
		a := r.Actions[i]
		if a.IsGoalAction() && a.Goal.Name == r.Goal.Name {
			goalActions = append(goalActions, a)
			continue
		}
		nonGoal = append(nonGoal, a)
	}
	sort.Slice(nonGoal, func(i, j int) bool { return nonGoal[i].Name < nonGoal[j].Name })
	sort.Slice(goalActions, func(i, j int) bool { return goalActions[i].Name < goalActions[j].Name })

	start := &searchNode{bb: bb}
	f := &frontier{start}
	heap.Init(f)
	visited := map[string]bool{candidateKey(bb): true}

	for f.Len() > 0 && len(visited) <= maxVisited {
		node := heap.Pop(f).(*searchNode)

		if best, ok := bestReadyGoalAction(goalActions, node); ok {
			if len(node.path) == 0 {
				return best, true, nil
			}
			return node.path[0], true, nil
		}

		for _, a := range nonGoal {
			if !a.satisfied(node.bb) {
				continue
			}
			next := a.apply(node.bb)
			key := candidateKey(next)
			if visited[key] {
				continue
			}
			visited[key] = true

			path := make([]Action, len(node.path)+1)
			copy(path, node.path)
			path[len(node.path)] = a

			heap.Push(f, &searchNode{
				bb:    next,
				path:  path,
				cost:  node.cost + a.Cost,
				value: node.value + a.Value,
			})
		}
	}

	return Action{}, false, signals.ErrNoPlanFound
}
