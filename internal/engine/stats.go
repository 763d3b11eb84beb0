package engine

import (
	"github.com/talgya/migration-sim/internal/flows"
	"github.com/talgya/migration-sim/internal/integration"
	"github.com/talgya/migration-sim/internal/policy"
)

// Stats summarizes the world for reports and logs.
type Stats struct {
	Tick            uint64                    `json:"tick"`
	Flows           int                       `json:"flows"`
	ActiveFlows     int                       `json:"active_flows"`
	TotalPopulation int                       `json:"total_population"`
	Policies        int                       `json:"policies"`
	ActivePolicies  int                       `json:"active_policies"`
	Outcomes        int                       `json:"outcomes"`
	AvgIntegration  float64                   `json:"avg_integration"` // headline average, 0 with no outcomes
	Stages          map[integration.Stage]int `json:"stages"`
	Destinations    map[string]int            `json:"destinations"`
	Events          int                       `json:"events"`
}

// Stats computes aggregate statistics over the current state.
func (s *Simulation) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Tick:   s.tick,
		Stages: make(map[integration.Stage]int),
		Events: s.events.Len(),
	}
	st.Destinations, _ = s.destinationTotals()

	for _, f := range s.store.Flows() {
		st.Flows++
		st.TotalPopulation += f.PopulationSize
		if f.Status == flows.StatusActive {
			st.ActiveFlows++
		}
	}
	for _, p := range s.store.Policies() {
		st.Policies++
		if p.Status == policy.StatusActive {
			st.ActivePolicies++
		}
	}

	var sum float64
	for _, o := range s.store.Outcomes() {
		st.Outcomes++
		st.Stages[o.Stage]++
		sum += o.HeadlineAverage()
	}
	if st.Outcomes > 0 {
		st.AvgIntegration = sum / float64(st.Outcomes)
	}
	return st
}
