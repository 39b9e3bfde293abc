// Command example wires the core packages together into the three literal
// scenarios of §8's Testable Properties: a Supervisor-driven two-step
// agent, a goal-directed three-step plan, and a validated structured-output
// retry. None of this wiring is part of the core; it exists to demonstrate
// how an embedder assembles blackboard, planner, dispatcher, process, and
// llm into a runnable agent, mirroring the teacher's cmd/demo/main.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/agentforge/agentforge/blackboard"
	"github.com/agentforge/agentforge/dispatcher"
	"github.com/agentforge/agentforge/eventbus"
	"github.com/agentforge/agentforge/llm"
	"github.com/agentforge/agentforge/llm/model"
	"github.com/agentforge/agentforge/planner"
	"github.com/agentforge/agentforge/process"
)

func main() {
	ctx := context.Background()

	frog, prince, err := runSupervisorScenario(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "supervisor scenario:", err)
		os.Exit(1)
	}
	fmt.Printf("supervisor scenario: %+v -> %+v\n", frog, prince)

	meal, order, err := runGoalDirectedScenario(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "goal-directed scenario:", err)
		os.Exit(1)
	}
	fmt.Printf("goal-directed scenario: actions=%v meal=%+v\n", order, meal)

	person, calls, err := runValidationRetryScenario(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "validation retry scenario:", err)
		os.Exit(1)
	}
	fmt.Printf("validation retry scenario: calls=%d person=%+v\n", calls, person)
}

// Frog and Prince are the domain types of §8 scenario 1 ("Two-step
// supervisor"): turnIntoFrog(UserInput) -> Frog, with a goal action
// turnIntoPrince(Frog) -> Prince.
type Frog struct{ Name string }
type Prince struct{ Name string }

var (
	frogType   = blackboard.TypeName(Frog{})
	princeType = blackboard.TypeName(Prince{})
)

// runSupervisorScenario wires planner.Supervisor directly -- not through
// process.New, since Supervisor implements its own Run(ctx, bb, history)
// entry point rather than planner.Planner (confirmed by
// planner/supervisor_test.go, which drives Supervisor the same way).
func runSupervisorScenario(ctx context.Context) (Frog, Prince, error) {
	bb := blackboard.New()
	bb.Bind("it", struct{ Text string }{Text: "a cursed toad"})

	goal := planner.Goal{Name: "turnIntoPrince", TypeName: princeType}
	turnIntoFrog := planner.Action{
		Name:    "turnIntoFrog",
		Outputs: []planner.Binding{{Name: "frog", TypeName: frogType}},
		Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
			return Frog{Name: "Kermit"}, nil
		}),
	}
	turnIntoPrince := planner.Action{
		Name:    "turnIntoPrince",
		Inputs:  []planner.Binding{{TypeName: frogType}},
		Outputs: []planner.Binding{{Name: "prince", TypeName: princeType}},
		Goal:    &goal,
		Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
			frog := inputs[frogType].(Frog)
			return Prince{Name: "Prince from " + frog.Name}, nil
		}),
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	bus := eventbus.New(logger)
	runner := dispatcher.New(bus, logger)

	sender := &scriptedSender{calls: []scriptedCall{
		{name: "turnIntoFrog", args: "{}"},
		{text: "done"},
	}}
	sup := planner.NewSupervisor([]planner.Action{turnIntoFrog, turnIntoPrince}, goal, sender, runner)

	if _, err := sup.Run(ctx, bb, []model.Message{model.User("turn this toad into a prince")}); err != nil {
		return Frog{}, Prince{}, err
	}

	frogVal, _ := bb.FirstValueOfType(frogType)
	princeVal, _ := bb.FirstValueOfType(princeType)
	return frogVal.(Frog), princeVal.(Prince), nil
}

// scriptedCall is either a tool-calling assistant turn or a final-answer
// turn for scriptedSender to replay in order.
type scriptedCall struct {
	name string
	args string
	text string
}

// scriptedSender replays a fixed script of CallResults, one per Send call,
// mirroring planner/supervisor_test.go's scriptedSupervisorSender.
type scriptedSender struct {
	calls []scriptedCall
	i     int
}

func (s *scriptedSender) Send(ctx context.Context, history []model.Message, defs []model.ToolDefinition, opts llm.Options) (model.CallResult, error) {
	if s.i >= len(s.calls) {
		return model.CallResult{Generations: []model.Generation{{Text: "no more script"}}}, nil
	}
	c := s.calls[s.i]
	s.i++
	if c.name != "" {
		return model.CallResult{Generations: []model.Generation{{
			ToolCalls: []model.ToolCall{{ID: fmt.Sprintf("call-%d", s.i), Name: c.name, Arguments: c.args}},
		}}}, nil
	}
	return model.CallResult{Generations: []model.Generation{{Text: c.text}}}, nil
}

// Ingredient, Dough, Bread, and Meal are the domain types of §8 scenario 2
// ("Goal-directed 3-step plan"), named to mirror the established
// ingredient/dough/bread/meal convention used throughout this module's own
// tests (autonomy/seeker_test.go).
type Ingredient struct{ Name string }
type Dough struct{ Source string }
type Bread struct{ Source string }
type Meal struct {
	Bread       string
	Description string
}

var (
	ingredientType = blackboard.TypeName(Ingredient{})
	doughType      = blackboard.TypeName(Dough{})
	breadType      = blackboard.TypeName(Bread{})
	mealType       = blackboard.TypeName(Meal{})
)

// runGoalDirectedScenario wires planner.GoalDirected through process.New,
// driving the full Agent Process loop of §4.8 over three chained actions
// plus a Goal Action.
func runGoalDirectedScenario(ctx context.Context) (Meal, []string, error) {
	bb := blackboard.New()
	bb.Bind("it", Ingredient{Name: "flour"})

	goal := planner.Goal{Name: "serveMeal", TypeName: mealType, Value: 10}
	actions := []planner.Action{
		{
			Name:    "makeDough",
			Inputs:  []planner.Binding{{TypeName: ingredientType}},
			Outputs: []planner.Binding{{TypeName: doughType}},
			Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
				in := inputs[ingredientType].(Ingredient)
				return Dough{Source: in.Name}, nil
			}),
		},
		{
			Name:    "bakeBread",
			Inputs:  []planner.Binding{{TypeName: doughType}},
			Outputs: []planner.Binding{{TypeName: breadType}},
			Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
				in := inputs[doughType].(Dough)
				return Bread{Source: in.Source}, nil
			}),
		},
		{
			Name:    "serveMeal",
			Inputs:  []planner.Binding{{TypeName: breadType}},
			Outputs: []planner.Binding{{TypeName: mealType}},
			Goal:    &goal,
			Value:   10,
			Executor: dispatcher.Executor(func(ctx context.Context, inputs map[string]any) (any, error) {
				in := inputs[breadType].(Bread)
				return Meal{Bread: in.Source, Description: "A delicious meal made from " + in.Source}, nil
			}),
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	bus := eventbus.New(logger)
	dispatch := dispatcher.New(bus, logger)
	plan := planner.NewGoalDirected(actions, goal)

	budget := process.Budget{MaxActions: 10}
	p := process.New(uuid.NewString(), bb, plan, dispatch, bus, budget, logger)

	if err := p.Run(ctx); err != nil {
		return Meal{}, nil, err
	}
	if p.Status() != process.StatusCompleted {
		return Meal{}, p.History(), fmt.Errorf("example: goal-directed process ended in status %s (reason %s)", p.Status(), p.Reason())
	}

	mealVal, _ := bb.FirstValueOfType(mealType)
	return mealVal.(Meal), p.History(), nil
}

// Person is the structured-output contract of §8 scenario 3 ("Validation
// retry"): the schema requires age > 0.
type Person struct {
	Age int `json:"age"`
}

var personSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"age": map[string]any{"type": "integer", "exclusiveMinimum": 0}},
	"required":   []any{"age"},
}

// invalidThenValidSender answers the first Send with an out-of-schema
// candidate ({"age":-1}) and the second with a valid one ({"age":30}),
// exercising llm.Operations.CreateObject's validateWithOneRetry path.
type invalidThenValidSender struct {
	calls int
}

func (s *invalidThenValidSender) Send(ctx context.Context, history []model.Message, defs []model.ToolDefinition, opts llm.Options) (model.CallResult, error) {
	s.calls++
	if s.calls == 1 {
		return model.CallResult{Generations: []model.Generation{{Text: `{"age":-1}`}}}, nil
	}
	return model.CallResult{Generations: []model.Generation{{Text: `{"age":30}`}}}, nil
}

// runValidationRetryScenario wires llm.Operations directly against
// invalidThenValidSender: CreateObject must make exactly two Send calls, the
// second carrying a violations-report prompt that mentions "age".
func runValidationRetryScenario(ctx context.Context) (Person, int, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sender := &invalidThenValidSender{}
	ops := llm.NewOperations(sender, nil, logger)

	outputType := llm.OutputType{
		Name:   "Person",
		Schema: personSchema,
		New:    func() any { return &Person{} },
	}

	candidate, err := ops.CreateObject(ctx, llm.Request{
		Messages:    []model.Message{model.User("describe a person")},
		Interaction: llm.Interaction{Validation: true},
		OutputType:  outputType,
	})
	if err != nil {
		return Person{}, sender.calls, err
	}

	person, ok := candidate.(*Person)
	if !ok {
		return Person{}, sender.calls, fmt.Errorf("example: unexpected candidate type %T", candidate)
	}
	return *person, sender.calls, nil
}
