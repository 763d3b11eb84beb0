package engine

import (
	"fmt"
	"time"

	"github.com/talgya/migration-sim/internal/config"
	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/flows"
	"github.com/talgya/migration-sim/internal/integration"
	"github.com/talgya/migration-sim/internal/policy"
)

// Snapshot is a point-in-time copy of the complete simulation state.
type Snapshot struct {
	Tick     uint64
	Start    time.Time
	Now      time.Time
	Flows    []flows.Flow
	Policies []policy.Policy
	Outcomes []integration.Outcome
	Events   []events.Event // oldest first
}

// Snapshot captures the current state.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Tick:   s.tick,
		Start:  s.start,
		Now:    s.now,
		Events: s.events.All(),
	}
	for _, f := range s.store.Flows() {
		snap.Flows = append(snap.Flows, f.Clone())
	}
	for _, p := range s.store.Policies() {
		snap.Policies = append(snap.Policies, p.Clone())
	}
	for _, o := range s.store.Outcomes() {
		snap.Outcomes = append(snap.Outcomes, o.Clone())
	}
	return snap
}

// Restore rebuilds a Simulation from snap. Default policies are not seeded
// again; the snapshot already holds every policy. Each outcome must pair
// with a flow in the snapshot.
func Restore(cfg *config.Config, snap Snapshot, opts ...Option) (*Simulation, error) {
	s, err := newSimulation(cfg, snap.Tick, opts)
	if err != nil {
		return nil, err
	}

	s.tick = snap.Tick
	if !snap.Start.IsZero() {
		s.start = snap.Start
	}
	s.now = snap.Now
	if s.now.IsZero() {
		s.now = s.cfg.TimeStep.Next(s.start, int(s.tick))
	}

	for i := range snap.Flows {
		f := snap.Flows[i].Clone()
		s.store.AddFlow(&f)
	}
	for i := range snap.Policies {
		p := snap.Policies[i].Clone()
		s.store.AddPolicy(&p)
	}
	for i := range snap.Outcomes {
		o := snap.Outcomes[i].Clone()
		if _, ok := s.store.Flow(o.FlowID); !ok {
			return nil, fmt.Errorf("restoring outcome %s: flow %s: %w", o.ID, o.FlowID, ErrFlowNotFound)
		}
		s.store.AddOutcome(&o)
	}
	for _, e := range snap.Events {
		s.events.Append(e.Clone())
	}

	s.logger.Info("simulation restored",
		"tick", s.tick,
		"time", SimTime(s.now),
		"flows", len(snap.Flows),
		"policies", len(snap.Policies),
		"events", s.events.Len(),
	)
	return s, nil
}
