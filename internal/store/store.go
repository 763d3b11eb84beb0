// Package store holds the engine's entities. Iteration always follows
// insertion order so that a seeded run replays exactly.
package store

import (
	"github.com/talgya/migration-sim/internal/flows"
	"github.com/talgya/migration-sim/internal/integration"
	"github.com/talgya/migration-sim/internal/policy"
)

// Store is the entity repository a Simulation owns. Returned pointers are
// live; callers outside the engine should clone before handing them out.
type Store interface {
	AddFlow(f *flows.Flow)
	Flow(id string) (*flows.Flow, bool)
	Flows() []*flows.Flow

	AddPolicy(p *policy.Policy)
	Policy(id string) (*policy.Policy, bool)
	Policies() []*policy.Policy

	AddOutcome(o *integration.Outcome)
	Outcome(id string) (*integration.Outcome, bool)
	OutcomeForFlow(flowID string) (*integration.Outcome, bool)
	Outcomes() []*integration.Outcome
}

// Compile-time check that Memory satisfies Store.
var _ Store = (*Memory)(nil)

// Memory is an in-process Store. It is not safe for concurrent use; the
// Simulation serializes access.
type Memory struct {
	flows      []*flows.Flow
	flowIndex  map[string]int
	policies   []*policy.Policy
	policyIdx  map[string]int
	outcomes   []*integration.Outcome
	outcomeIdx map[string]int
	byFlow     map[string]int // flow ID → outcomes index
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		flowIndex:  make(map[string]int),
		policyIdx:  make(map[string]int),
		outcomeIdx: make(map[string]int),
		byFlow:     make(map[string]int),
	}
}

// AddFlow stores f. Re-adding an ID replaces the entry in place.
func (m *Memory) AddFlow(f *flows.Flow) {
	if i, ok := m.flowIndex[f.ID]; ok {
		m.flows[i] = f
		return
	}
	m.flowIndex[f.ID] = len(m.flows)
	m.flows = append(m.flows, f)
}

func (m *Memory) Flow(id string) (*flows.Flow, bool) {
	i, ok := m.flowIndex[id]
	if !ok {
		return nil, false
	}
	return m.flows[i], true
}

// Flows returns every flow in insertion order.
func (m *Memory) Flows() []*flows.Flow {
	out := make([]*flows.Flow, len(m.flows))
	copy(out, m.flows)
	return out
}

// AddPolicy stores p. Re-adding an ID replaces the entry in place.
func (m *Memory) AddPolicy(p *policy.Policy) {
	if i, ok := m.policyIdx[p.ID]; ok {
		m.policies[i] = p
		return
	}
	m.policyIdx[p.ID] = len(m.policies)
	m.policies = append(m.policies, p)
}

func (m *Memory) Policy(id string) (*policy.Policy, bool) {
	i, ok := m.policyIdx[id]
	if !ok {
		return nil, false
	}
	return m.policies[i], true
}

// Policies returns every policy in insertion order.
func (m *Memory) Policies() []*policy.Policy {
	out := make([]*policy.Policy, len(m.policies))
	copy(out, m.policies)
	return out
}

// AddOutcome stores o and indexes it by its flow.
func (m *Memory) AddOutcome(o *integration.Outcome) {
	if i, ok := m.outcomeIdx[o.ID]; ok {
		m.outcomes[i] = o
		m.byFlow[o.FlowID] = i
		return
	}
	i := len(m.outcomes)
	m.outcomeIdx[o.ID] = i
	m.byFlow[o.FlowID] = i
	m.outcomes = append(m.outcomes, o)
}

func (m *Memory) Outcome(id string) (*integration.Outcome, bool) {
	i, ok := m.outcomeIdx[id]
	if !ok {
		return nil, false
	}
	return m.outcomes[i], true
}

// OutcomeForFlow returns the outcome paired with the given flow.
func (m *Memory) OutcomeForFlow(flowID string) (*integration.Outcome, bool) {
	i, ok := m.byFlow[flowID]
	if !ok {
		return nil, false
	}
	return m.outcomes[i], true
}

// Outcomes returns every outcome in insertion order.
func (m *Memory) Outcomes() []*integration.Outcome {
	out := make([]*integration.Outcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}
