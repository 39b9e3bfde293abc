// Package autonomy implements the Autonomy / Goal Seeker of §4.9: given
// free-form bindings and a universe of candidate goals, it ranks the goals,
// filters by a confidence cutoff, confirms the top candidate with an
// approver, constructs a synthetic agent containing only the actions
// relevant to that goal, runs it, and returns the last output. It has no
// direct teacher analog -- the teacher's agents are defined statically, not
// chosen at runtime from a goal universe -- so its pieces are composed from
// the same planner/dispatcher/process primitives §4.6-§4.8 already provide,
// in the teacher's idiom (small interfaces for external collaborators,
// sentinel errors, *slog.Logger throughout).
package autonomy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/dispatcher"
	"github.com/agentforge/agentforge/eventbus"
	"github.com/agentforge/agentforge/planner"
	"github.com/agentforge/agentforge/process"
	"github.com/agentforge/agentforge/signals"
)

// Ranker is the external "ranker" of §4.9 step 2: scores each candidate goal
// in [0,1] against a free-form textual description of the current bindings.
type Ranker interface {
	Rank(ctx context.Context, input string, goals []planner.Goal) (map[string]float64, error)
}

// Approver is the external "goal-choice approver" of §4.9 step 3: confirms
// (or rejects) the top-ranked candidate before autonomy commits to it.
type Approver interface {
	Approve(ctx context.Context, goal planner.Goal, confidence float64) (bool, error)
}

// AutoApprove always approves, satisfying §4.9's "may auto-approve"
// allowance. It is the Seeker default when Approver is nil.
type AutoApprove struct{}

// Approve implements Approver.
func (AutoApprove) Approve(context.Context, planner.Goal, float64) (bool, error) { return true, nil }

// Seeker implements §4.9 end to end.
type Seeker struct {
	// Actions is the full action universe the agent definition declares.
	// Run filters this down to the subset relevant to whichever goal wins.
	Actions []planner.Action
	// Goals is the universe of candidate goals to rank.
	Goals []planner.Goal

	Ranker Ranker
	// Approver defaults to AutoApprove when nil.
	Approver Approver
	// ConfidenceCutoff is goalConfidenceCutOff: goals scoring below this are
	// dropped before approval (§4.9 step 2).
	ConfidenceCutoff float64

	Bus    eventbus.Bus
	Budget process.Budget
	Logger *slog.Logger

	// UserInputTypeName is the blackboard type name autonomy treats as the
	// literal user-input binding (§4.9 step 1: "if a UserInput is present,
	// extract it for ranking"). Defaults to "UserInput" if empty.
	UserInputTypeName string
	// RenderBindings builds the synthetic textual representation used for
	// ranking when no UserInputTypeName binding is present (§4.9 step 1:
	// "the core must not require a UserInput"). Defaults to renderBindings.
	RenderBindings func(objects []blackboard.Object) string
}

// candidate pairs a ranked goal with its score, used internally to sort and
// filter before approval.
type candidate struct {
	goal  planner.Goal
	score float64
}

// Run implements §4.9 steps 1-4: seed, rank, approve, construct and run a
// synthetic single-goal agent, and return the last output -- the value
// bound under the winning goal's declared type once its process completes.
func (s *Seeker) Run(ctx context.Context, bindings map[string]any) (any, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if s.Ranker == nil {
		return nil, signals.New("autonomy: no Ranker configured")
	}

	bb := blackboard.New()
	for name, v := range bindings {
		bb.Bind(name, v)
	}

	text := s.rankingText(bb)

	scores, err := s.Ranker.Rank(ctx, text, s.Goals)
	if err != nil {
		return nil, signals.WithCause("autonomy: rank goals", err)
	}

	candidates := rankedCandidates(s.Goals, scores, s.ConfidenceCutoff)
	if len(candidates) == 0 {
		return nil, ErrNoGoalAboveCutoff
	}
	top := candidates[0]

	approver := s.Approver
	if approver == nil {
		approver = AutoApprove{}
	}
	approved, err := approver.Approve(ctx, top.goal, top.score)
	if err != nil {
		return nil, signals.WithCause("autonomy: approve goal", err)
	}
	if !approved {
		return nil, ErrGoalNotApproved
	}
	logger.Info("autonomy: goal selected", "goal", top.goal.Name, "confidence", top.score)

	actions := relevantActions(s.Actions, top.goal)
	dispatch := dispatcher.New(s.Bus, logger)
	plan := planner.NewGoalDirected(actions, top.goal)

	proc := process.New(uuid.NewString(), bb, plan, dispatch, s.Bus, s.Budget, logger)
	if err := proc.Run(ctx); err != nil {
		return nil, err
	}
	if proc.Status() != process.StatusCompleted {
		return nil, signals.Newf("autonomy: synthetic agent for goal %q ended in status %s", top.goal.Name, proc.Status())
	}

	out, ok := bb.FirstValueOfType(top.goal.TypeName)
	if !ok {
		return nil, signals.Newf("autonomy: goal %q satisfied but no binding of type %q found", top.goal.Name, top.goal.TypeName)
	}
	return out, nil
}

// rankingText implements §4.9 step 1: extract a literal UserInput if bound,
// else fall back to a synthetic textual representation of every binding.
func (s *Seeker) rankingText(bb *blackboard.Blackboard) string {
	typeName := s.UserInputTypeName
	if typeName == "" {
		typeName = "UserInput"
	}
	if v, ok := bb.FirstValueOfType(typeName); ok {
		if str, ok := v.(fmt.Stringer); ok {
			return str.String()
		}
		return fmt.Sprintf("%v", v)
	}

	render := s.RenderBindings
	if render == nil {
		render = renderBindings
	}
	return render(bb.Objects())
}

// renderBindings is the default synthetic textual representation of the
// bindings, used when no UserInput binding is present.
func renderBindings(objects []blackboard.Object) string {
	var b strings.Builder
	for _, o := range objects {
		fmt.Fprintf(&b, "%s (%s): %v\n", o.Name, o.TypeName, o.Value)
	}
	return b.String()
}

// rankedCandidates filters goals scoring below cutoff (or missing a score
// entirely) and sorts the rest by descending score, breaking ties
// lexicographically by name for determinism.
func rankedCandidates(goals []planner.Goal, scores map[string]float64, cutoff float64) []candidate {
	out := make([]candidate, 0, len(goals))
	for _, g := range goals {
		score, ok := scores[g.Name]
		if !ok || score < cutoff {
			continue
		}
		out = append(out, candidate{goal: g, score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].goal.Name < out[j].goal.Name
	})
	return out
}

// relevantActions implements §4.9 step 4's "only the actions relevant to
// the chosen goal": starting from goal's own Goal Action(s), backward-chain
// through the action universe collecting every action that transitively
// produces a type the chosen chain still needs, to a fixpoint.
func relevantActions(all []planner.Action, goal planner.Goal) []planner.Action {
	relevant := make(map[string]bool)
	needed := make(map[string]bool)

	for _, a := range all {
		if a.IsGoalAction() && a.Goal.Name == goal.Name {
			relevant[a.Name] = true
			for _, in := range a.Inputs {
				if in.TypeName != "" {
					needed[in.TypeName] = true
				}
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, a := range all {
			if relevant[a.Name] {
				continue
			}
			produces := false
			for _, out := range a.Outputs {
				if needed[out.TypeName] {
					produces = true
					break
				}
			}
			if !produces {
				continue
			}
			relevant[a.Name] = true
			changed = true
			for _, in := range a.Inputs {
				if in.TypeName != "" && !needed[in.TypeName] {
					needed[in.TypeName] = true
				}
			}
		}
	}

	out := make([]planner.Action, 0, len(relevant))
	for _, a := range all {
		if relevant[a.Name] {
			out = append(out, a)
		}
	}
	return out
}
