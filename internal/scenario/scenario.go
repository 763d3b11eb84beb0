// Package scenario loads named sets of initial flows, policies and
// scheduled policy changes from YAML and applies them to a simulation.
package scenario

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/talgya/migration-sim/internal/engine"
	"github.com/talgya/migration-sim/internal/policy"
)

//go:embed baseline.yaml
var baselineYAML []byte

// ErrUnknownPolicy is returned when a scheduled change names a policy the
// simulation does not hold.
var ErrUnknownPolicy = errors.New("unknown policy")

// Change fires a lifecycle event on the named policy once the simulation
// reaches Tick.
type Change struct {
	Tick   uint64       `yaml:"tick"`
	Policy string       `yaml:"policy"` // policy name
	Event  policy.Event `yaml:"event"`
}

// Scenario is a reproducible starting point for a run.
type Scenario struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Ticks       uint64                `yaml:"ticks"` // suggested run length, 0 = caller decides
	Flows       []engine.FlowParams   `yaml:"flows"`
	Policies    []engine.PolicyParams `yaml:"policies"`
	Schedule    []Change              `yaml:"schedule"`
}

// Baseline returns the built-in scenario.
func Baseline() *Scenario {
	s, err := Parse(baselineYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded baseline scenario: %v", err))
	}
	return s
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario document. The schedule is sorted
// by tick, keeping document order within a tick.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if s.Name == "" {
		return nil, errors.New("scenario name is required")
	}
	for i, c := range s.Schedule {
		if c.Policy == "" {
			return nil, fmt.Errorf("schedule[%d]: policy name is required", i)
		}
		if c.Tick == 0 {
			return nil, fmt.Errorf("schedule[%d]: tick must be positive", i)
		}
	}
	slices.SortStableFunc(s.Schedule, func(a, b Change) int {
		switch {
		case a.Tick < b.Tick:
			return -1
		case a.Tick > b.Tick:
			return 1
		}
		return 0
	})
	return &s, nil
}

// Apply creates the scenario's policies and then its flows, so new flows
// see the scenario's policies at creation.
func (s *Scenario) Apply(sim *engine.Simulation) error {
	for i, p := range s.Policies {
		if _, err := sim.CreatePolicy(p); err != nil {
			return fmt.Errorf("scenario %s: policy %d (%s): %w", s.Name, i, p.Name, err)
		}
	}
	for i, f := range s.Flows {
		if _, err := sim.CreateFlow(f); err != nil {
			return fmt.Errorf("scenario %s: flow %d (%s to %s): %w", s.Name, i, f.Subtype, f.DestinationCityID, err)
		}
	}
	return nil
}

// Due returns the scheduled changes for tick.
func (s *Scenario) Due(tick uint64) []Change {
	var out []Change
	for _, c := range s.Schedule {
		if c.Tick == tick {
			out = append(out, c)
		}
	}
	return out
}

// Fire applies c to the first policy in sim named c.Policy.
func Fire(ctx context.Context, sim *engine.Simulation, c Change) (policy.Policy, error) {
	for _, p := range sim.Policies() {
		if p.Name == c.Policy {
			return sim.TransitionPolicy(ctx, p.ID, c.Event)
		}
	}
	return policy.Policy{}, fmt.Errorf("%s: %w", c.Policy, ErrUnknownPolicy)
}
