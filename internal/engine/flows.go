package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/talgya/migration-sim/internal/config"
	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/flows"
	"github.com/talgya/migration-sim/internal/integration"
	"github.com/talgya/migration-sim/internal/policy"
)

// FlowParams describes a flow to create.
type FlowParams struct {
	Type              flows.Type    `json:"type" yaml:"type"`
	Subtype           flows.Subtype `json:"subtype" yaml:"subtype"`
	OriginCityID      string        `json:"origin_city_id,omitempty" yaml:"origin_city_id,omitempty"`
	OriginCountry     string        `json:"origin_country,omitempty" yaml:"origin_country,omitempty"`
	DestinationCityID string        `json:"destination_city_id" yaml:"destination_city_id"`
	PopulationSize    int           `json:"population_size" yaml:"population_size"`
	Duration          int           `json:"duration,omitempty" yaml:"duration,omitempty"` // months

	// Status is planned or active. Empty means active.
	Status flows.Status `json:"status,omitempty" yaml:"status,omitempty"`

	Demographics       flows.Demographics       `json:"demographics" yaml:"demographics"`
	EconomicProfile    flows.EconomicProfile    `json:"economic_profile" yaml:"economic_profile"`
	PushFactors        flows.PushFactors        `json:"push_factors" yaml:"push_factors"`
	PullFactors        flows.PullFactors        `json:"pull_factors" yaml:"pull_factors"`
	LegalStatus        flows.LegalStatus        `json:"legal_status" yaml:"legal_status"`
	IntegrationFactors flows.IntegrationFactors `json:"integration_factors" yaml:"integration_factors"`
}

func (p FlowParams) validate() error {
	switch {
	case !p.Type.Valid():
		return invalidFlow("unknown type %q", p.Type)
	case !p.Subtype.Valid():
		return invalidFlow("unknown subtype %q", p.Subtype)
	case !p.LegalStatus.Valid():
		return invalidFlow("unknown legal status %q", p.LegalStatus)
	case p.DestinationCityID == "":
		return invalidFlow("destination city is required")
	case p.PopulationSize < 0:
		return invalidFlow("population size must be non-negative, got %d", p.PopulationSize)
	case p.Duration < 0:
		return invalidFlow("duration must be non-negative, got %d", p.Duration)
	case !p.PushFactors.Finite(), !p.PullFactors.Finite():
		return invalidFlow("push and pull factors must be finite numbers")
	case !p.IntegrationFactors.Finite():
		return invalidFlow("integration factors must be finite numbers")
	case !p.EconomicProfile.Finite(), !p.Demographics.Finite():
		return invalidFlow("economic profile and demographics must be finite numbers")
	}
	switch p.Status {
	case "", flows.StatusActive, flows.StatusPlanned:
	default:
		return invalidFlow("a new flow must be planned or active, got %q", p.Status)
	}
	return nil
}

// CreateFlow validates p, applies every eligible policy to the new flow,
// creates its paired integration outcome and logs a flow_change event.
func (s *Simulation) CreateFlow(p FlowParams) (flows.Flow, error) {
	if err := p.validate(); err != nil {
		return flows.Flow{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := p.Status
	if status == "" {
		status = flows.StatusActive
	}

	f := &flows.Flow{
		ID:                 s.newID("flow_" + string(p.Type)),
		Type:               p.Type,
		Subtype:            p.Subtype,
		OriginCityID:       p.OriginCityID,
		OriginCountry:      p.OriginCountry,
		DestinationCityID:  p.DestinationCityID,
		StartDate:          s.now,
		Duration:           p.Duration,
		Demographics:       p.Demographics,
		EconomicProfile:    p.EconomicProfile,
		PushFactors:        p.PushFactors.Clamped(),
		PullFactors:        p.PullFactors.Clamped(),
		LegalStatus:        p.LegalStatus,
		IntegrationFactors: p.IntegrationFactors.Clamped(),
		CreatedAt:          s.now,
		LastUpdated:        s.now,
		Status:             status,
	}
	// Detach caller-owned maps and slices.
	*f = f.Clone()
	f.SetPopulation(float64(p.PopulationSize))
	if p.Duration > 0 {
		end := config.AddMonths(s.now, p.Duration)
		f.EndDate = &end
	}
	f.VisaType = flows.VisaType(f.Subtype, f.LegalStatus)
	f.DocumentationLevel = flows.DocumentationLevel(f.LegalStatus, s.rng)

	for _, pol := range s.eligiblePolicies(f) {
		s.applyEffectsToFlow(f, pol)
	}
	s.store.AddFlow(f)

	outcome := integration.NewOutcome(s.newID("integration"), f, s.now, s.rng)
	s.store.AddOutcome(outcome)

	severity := events.SeverityMedium
	if f.PopulationSize > 1000 {
		severity = events.SeverityHigh
	}
	desc := fmt.Sprintf("New %s flow created: %d people from %s to %s",
		f.Type, f.PopulationSize, f.OriginLabel(), f.DestinationCityID)
	s.logEvent(events.Event{
		Type:           events.TypeFlowChange,
		Description:    desc,
		Severity:       severity,
		AffectedCities: []string{f.DestinationCityID},
		AffectedFlows:  []string{f.ID},
		Impact: events.Impact{
			Population: float64(f.PopulationSize),
			Economic:   economicImpact(f),
			Social:     socialImpact(f),
		},
	})

	s.logger.Info("flow created",
		"id", f.ID,
		"type", f.Type,
		"subtype", f.Subtype,
		"destination", f.DestinationCityID,
		"population", f.PopulationSize,
		"legal_status", f.LegalStatus,
	)
	return f.Clone(), nil
}

func economicImpact(f *flows.Flow) float64 {
	return float64(f.PopulationSize) * f.EconomicProfile.AverageIncome * 0.3
}

func socialImpact(f *flows.Flow) float64 {
	distance := 100 - f.IntegrationFactors.CulturalSimilarity
	return flows.Clamp(float64(f.PopulationSize)/1000*(distance/100)*-10, -20, 20)
}

// TransitionFlow fires event on the flow's lifecycle.
func (s *Simulation) TransitionFlow(ctx context.Context, id string, event flows.Event) (flows.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.store.Flow(id)
	if !ok {
		return flows.Flow{}, fmt.Errorf("transition flow %s: %w", id, ErrFlowNotFound)
	}
	if err := s.transitionFlow(ctx, f, event); err != nil {
		return flows.Flow{}, fmt.Errorf("transition flow %s: %w", id, err)
	}
	return f.Clone(), nil
}

func (s *Simulation) transitionFlow(ctx context.Context, f *flows.Flow, event flows.Event) error {
	next, err := flows.Transition(ctx, f.Status, event)
	if err != nil {
		return err
	}
	prev := f.Status
	f.Status = next
	f.LastUpdated = s.now

	s.logEvent(events.Event{
		Type:           events.TypeFlowChange,
		Description:    fmt.Sprintf("Flow %s moved from %s to %s", f.ID, prev, next),
		Severity:       events.SeverityLow,
		AffectedCities: []string{f.DestinationCityID},
		AffectedFlows:  []string{f.ID},
	})
	s.logger.Info("flow transitioned", "id", f.ID, "event", event, "from", prev, "to", next)
	return nil
}

// updateFlows runs the completion check, flow dynamics and population
// update for every flow. Network totals are read once up front so the
// result does not depend on iteration order.
func (s *Simulation) updateFlows() {
	totals, _ := s.destinationTotals()

	for _, f := range s.store.Flows() {
		s.checkCompletion(f)

		eligible := s.eligiblePolicies(f)
		s.updateFlowDynamics(f, eligible)
		s.updateFlowPopulation(f, eligible, totals[f.DestinationCityID])
		f.LastUpdated = s.now
	}
}

// checkCompletion completes flows whose end date has passed.
func (s *Simulation) checkCompletion(f *flows.Flow) {
	if f.EndDate == nil || f.Status == flows.StatusCompleted || !s.now.After(*f.EndDate) {
		return
	}
	if err := s.transitionFlow(context.Background(), f, flows.EventComplete); err != nil {
		s.logger.Warn("flow completion rejected", "id", f.ID, "error", err)
	}
}

// updateFlowDynamics drifts the economic push and pull factors under
// economic and policy pressure.
func (s *Simulation) updateFlowDynamics(f *flows.Flow, eligible []*policy.Policy) {
	economicPressure := (f.PushFactors.Economic - f.PullFactors.Economic) / 100

	policyPressure := 0.0
	if len(eligible) > 0 {
		for _, p := range eligible {
			policyPressure += p.Effects.FlowMultiplier - 1
		}
		policyPressure /= float64(len(eligible))
	}

	total := economicPressure*s.cfg.EconomicSensitivity + policyPressure*s.cfg.PolicySensitivity
	f.PushFactors.Economic = flows.Clamp100(f.PushFactors.Economic + total*0.1)
	f.PullFactors.Economic = flows.Clamp100(f.PullFactors.Economic - total*0.1)
}

// updateFlowPopulation applies volatility, the aggregate policy multiplier
// and the network effect as one change rate.
func (s *Simulation) updateFlowPopulation(f *flows.Flow, eligible []*policy.Policy, destinationTotal int) {
	volatility := (s.rng.Float64() - 0.5) * s.cfg.BaseFlowVolatility
	network := networkEffect(destinationTotal, s.cfg.NetworkEffectStrength)
	changeRate := volatility + (policyMultiplier(eligible)-1)*0.1 + network

	pop := float64(f.PopulationSize)
	f.SetPopulation(pop + math.Floor(pop*changeRate))
}

// policyMultiplier compounds the flow multipliers of eligible policies,
// each scaled by its enforcement level.
func policyMultiplier(eligible []*policy.Policy) float64 {
	m := 1.0
	for _, p := range eligible {
		m *= 1 + (p.Effects.FlowMultiplier-1)*p.EnforcementLevel/100
	}
	return m
}
