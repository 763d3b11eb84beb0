package engine

// Phase names, in the order Advance runs them.
const (
	StepFlows        = "flows"
	StepIntegration  = "integration"
	StepPolicies     = "policies"
	StepRandomEvents = "random_events"
	StepNetwork      = "network"
	StepCapacity     = "capacity"
)

// step is one named phase of a tick.
type step struct {
	name string
	run  func()
}

// defaultSteps fixes the tick order. Policy effects run after organic flow
// drift so they act on the tick's updated state; network effects run after
// every population change has settled.
func (s *Simulation) defaultSteps() []step {
	return []step{
		{name: StepFlows, run: s.updateFlows},
		{name: StepIntegration, run: s.updateIntegration},
		{name: StepPolicies, run: s.applyPolicyEffects},
		{name: StepRandomEvents, run: s.processRandomEvents},
		{name: StepNetwork, run: s.applyNetworkEffects},
		{name: StepCapacity, run: s.checkCapacityConstraints},
	}
}

// StepNames returns the phase order of one Advance call.
func (s *Simulation) StepNames() []string {
	names := make([]string, len(s.steps))
	for i, st := range s.steps {
		names[i] = st.name
	}
	return names
}

// Advance runs one simulation tick. The clock moves forward by the
// configured time step before any phase runs.
func (s *Simulation) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	s.now = s.cfg.TimeStep.Next(s.start, int(s.tick))

	for _, st := range s.steps {
		if s.observer != nil {
			s.observer(s.tick, st.name)
		}
		st.run()
	}

	s.logger.Debug("tick complete",
		"tick", s.tick,
		"time", SimTime(s.now),
		"flows", len(s.store.Flows()),
		"events", s.events.Len(),
	)
}
