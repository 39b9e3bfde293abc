// Package agentdef implements the external "annotation-driven agent
// metadata reader" of §6: a YAML file declaring an agent's Actions and
// Goals, read and resolved into the planner.Action/planner.Goal values the
// core's Agent Process and planners consume. The core never reads YAML
// itself (§1 "Out of scope"); this package only exists so example/ has a
// concrete metadata source, grounded on the teacher's own YAML-driven test
// fixture reader (integration_tests/framework/runner.go).
//
// YAML cannot carry a Go func value, so an ActionDef names its executor by a
// string key (ExecutorRef) rather than embedding one; Build resolves that
// key against a caller-supplied Registry. This mirrors how the teacher's
// runner.go resolves a step's "client" field against a generated-client
// registry rather than embedding a client value in the fixture itself.
package agentdef

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentforge/agentforge/dispatcher"
	"github.com/agentforge/agentforge/planner"
)

// BindingDef is the YAML form of planner.Binding.
type BindingDef struct {
	Name     string `yaml:"name,omitempty"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional,omitempty"`
}

func (b BindingDef) binding() planner.Binding {
	return planner.Binding{Name: b.Name, TypeName: b.Type, Optional: b.Optional}
}

// GoalDef is the YAML form of planner.Goal.
type GoalDef struct {
	Name  string  `yaml:"name"`
	Type  string  `yaml:"type"`
	Value float64 `yaml:"value,omitempty"`
}

func (g GoalDef) goal() planner.Goal {
	return planner.Goal{Name: g.Name, TypeName: g.Type, Value: g.Value}
}

// ActionDef is the YAML form of planner.Action. Executor is not declared
// here -- it is resolved from a Registry by ExecutorRef at Build time.
type ActionDef struct {
	Name    string       `yaml:"name"`
	Inputs  []BindingDef `yaml:"inputs,omitempty"`
	Outputs []BindingDef `yaml:"outputs,omitempty"`
	Cost    float64      `yaml:"cost,omitempty"`
	Value   float64      `yaml:"value,omitempty"`
	// Goal, if set, names one of the agent's declared Goals this action
	// achieves, making it a Goal Action (§3).
	Goal string `yaml:"goal,omitempty"`
	// ExecutorRef is the key Build looks up in the Registry passed to it.
	ExecutorRef string `yaml:"executor"`
}

// Kind selects which of §4.6's two planner variants an agent runs under.
type Kind string

const (
	GoalDirected Kind = "goal_directed"
	Supervisor   Kind = "supervisor"
)

// Definition is one agent's full declared surface (§6 "Agent definition
// surface"): name, optional description, actions, goals, and a planner
// selector.
type Definition struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Planner     Kind        `yaml:"planner"`
	Actions     []ActionDef `yaml:"actions"`
	Goals       []GoalDef   `yaml:"goals"`
}

// Registry resolves an ActionDef.ExecutorRef to a concrete executor. The
// caller populates it with whatever Go functions the agent definition's
// executor names refer to; agentdef has no way to discover these on its
// own since they are not representable in YAML.
type Registry map[string]dispatcher.Executor

// Load reads and parses a Definition from the YAML file at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agentdef: read %s: %w", path, err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("agentdef: parse %s: %w", path, err)
	}
	return &def, nil
}

// Build resolves d into the []planner.Action/[]planner.Goal pair the core
// consumes, wiring each ActionDef's ExecutorRef through reg and each
// ActionDef.Goal reference against d.Goals. It fails closed: an action
// naming an ExecutorRef or Goal that doesn't resolve is an error, not a
// silently-dropped action.
func (d *Definition) Build(reg Registry) ([]planner.Action, []planner.Goal, error) {
	goals := make([]planner.Goal, 0, len(d.Goals))
	goalByName := make(map[string]planner.Goal, len(d.Goals))
	for _, g := range d.Goals {
		pg := g.goal()
		goals = append(goals, pg)
		goalByName[g.Name] = pg
	}

	actions := make([]planner.Action, 0, len(d.Actions))
	for _, a := range d.Actions {
		exec, ok := reg[a.ExecutorRef]
		if !ok {
			return nil, nil, fmt.Errorf("agentdef: action %q: no executor registered for %q", a.Name, a.ExecutorRef)
		}

		action := planner.Action{
			Name:     a.Name,
			Inputs:   bindings(a.Inputs),
			Outputs:  bindings(a.Outputs),
			Cost:     a.Cost,
			Value:    a.Value,
			Executor: exec,
		}
		if a.Goal != "" {
			g, ok := goalByName[a.Goal]
			if !ok {
				return nil, nil, fmt.Errorf("agentdef: action %q: undeclared goal %q", a.Name, a.Goal)
			}
			action.Goal = &g
		}
		actions = append(actions, action)
	}
	return actions, goals, nil
}

func bindings(defs []BindingDef) []planner.Binding {
	if len(defs) == 0 {
		return nil
	}
	out := make([]planner.Binding, len(defs))
	for i, d := range defs {
		out[i] = d.binding()
	}
	return out
}
