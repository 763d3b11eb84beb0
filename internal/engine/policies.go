package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/flows"
	"github.com/talgya/migration-sim/internal/policy"
)

// PolicyParams describes a policy to create.
type PolicyParams struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Type        policy.Type `json:"type" yaml:"type"`

	Parameters policy.Parameters `json:"parameters" yaml:"parameters"`
	Effects    policy.Effects    `json:"effects" yaml:"effects"`

	TargetGroups []flows.Subtype `json:"target_groups" yaml:"target_groups"`
	TargetCities []string        `json:"target_cities,omitempty" yaml:"target_cities,omitempty"`

	// ImplementationDate defaults to the simulation clock.
	ImplementationDate time.Time `json:"implementation_date,omitempty" yaml:"implementation_date,omitempty"`

	EnforcementLevel   float64 `json:"enforcement_level" yaml:"enforcement_level"`
	ImplementationCost float64 `json:"implementation_cost" yaml:"implementation_cost"`

	// Status defaults to active.
	Status policy.Status `json:"status,omitempty" yaml:"status,omitempty"`
}

func (p PolicyParams) validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return invalidPolicy("name is required")
	case !p.Type.Valid():
		return invalidPolicy("unknown type %q", p.Type)
	case p.Status != "" && !p.Status.Valid():
		return invalidPolicy("unknown status %q", p.Status)
	case len(p.TargetGroups) == 0:
		return invalidPolicy("at least one target group is required")
	case !flows.Finite(p.EnforcementLevel) || p.EnforcementLevel < 0 || p.EnforcementLevel > 100:
		return invalidPolicy("enforcement level must be between 0 and 100, got %f", p.EnforcementLevel)
	case !p.Effects.Finite():
		return invalidPolicy("effects must be finite numbers")
	case !flows.Finite(p.ImplementationCost, p.Parameters.PointsThreshold, p.Parameters.LanguageRequirement):
		return invalidPolicy("cost and parameters must be finite numbers")
	}
	for _, g := range p.TargetGroups {
		if !g.Valid() {
			return invalidPolicy("unknown target group %q", g)
		}
	}
	return nil
}

// slug lowercases name and joins its words with underscores.
func slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// CreatePolicy validates p, applies it to matching existing flows when it
// is already past the implementation lag, and logs a
// policy_implementation event. Effects are clamped to their bounds.
func (s *Simulation) CreatePolicy(p PolicyParams) (policy.Policy, error) {
	if err := p.validate(); err != nil {
		return policy.Policy{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	implemented := p.ImplementationDate
	if implemented.IsZero() {
		implemented = s.now
	}
	status := p.Status
	if status == "" {
		status = policy.StatusActive
	}

	pol := &policy.Policy{
		ID:                 s.newID("policy_" + slug(p.Name)),
		Name:               p.Name,
		Description:        p.Description,
		Type:               p.Type,
		Parameters:         p.Parameters,
		Effects:            p.Effects.Clamped(),
		TargetGroups:       p.TargetGroups,
		TargetCities:       p.TargetCities,
		ImplementationDate: implemented,
		EnforcementLevel:   p.EnforcementLevel,
		ImplementationCost: p.ImplementationCost,
		Status:             status,
		CreatedAt:          s.now,
		LastUpdated:        s.now,
	}
	*pol = pol.Clone()
	s.store.AddPolicy(pol)

	if s.pastLag(pol) {
		for _, f := range s.store.Flows() {
			if policy.Applicable(pol, f) {
				s.applyEffectsToFlow(f, pol)
			}
		}
	}

	affected := append([]string{}, pol.TargetCities...)
	s.logEvent(events.Event{
		Type:             events.TypePolicyImplementation,
		Description:      "New immigration policy implemented: " + pol.Name,
		Severity:         events.SeverityMedium,
		AffectedCities:   affected,
		AffectedPolicies: []string{pol.ID},
		Impact: events.Impact{
			Economic: pol.ImplementationCost,
			Social:   pol.Effects.SocialCohesion,
			Policy:   pol.Effects.LegalPathwayStrength,
		},
	})

	s.logger.Info("policy created",
		"id", pol.ID,
		"type", pol.Type,
		"status", pol.Status,
		"flow_multiplier", pol.Effects.FlowMultiplier,
		"implemented", SimTime(pol.ImplementationDate),
	)
	return pol.Clone(), nil
}

// TransitionPolicy fires event on the policy's lifecycle and logs a
// policy_change event.
func (s *Simulation) TransitionPolicy(ctx context.Context, id string, event policy.Event) (policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.store.Policy(id)
	if !ok {
		return policy.Policy{}, fmt.Errorf("transition policy %s: %w", id, ErrPolicyNotFound)
	}
	next, err := policy.Transition(ctx, p.Status, event)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("transition policy %s: %w", id, err)
	}
	prev := p.Status
	p.Status = next
	p.LastUpdated = s.now

	s.logEvent(events.Event{
		Type:             events.TypePolicyChange,
		Description:      fmt.Sprintf("Policy %s moved from %s to %s", p.Name, prev, next),
		Severity:         events.SeverityMedium,
		AffectedCities:   append([]string{}, p.TargetCities...),
		AffectedPolicies: []string{p.ID},
	})
	s.logger.Info("policy transitioned", "id", p.ID, "event", event, "from", prev, "to", next)
	return p.Clone(), nil
}

func (s *Simulation) pastLag(p *policy.Policy) bool {
	return policy.PastLag(p, s.now, s.cfg.PolicyImplementationLag)
}

// eligiblePolicies returns the policies that currently act on f: applicable
// and past the implementation lag, in creation order.
func (s *Simulation) eligiblePolicies(f *flows.Flow) []*policy.Policy {
	var out []*policy.Policy
	for _, p := range s.store.Policies() {
		if policy.Applicable(p, f) && s.pastLag(p) {
			out = append(out, p)
		}
	}
	return out
}

// applyPolicyEffects is the per-tick sweep: every active policy past the
// lag acts on each flow it applies to. Policies are continuous pressures
// and are re-applied every tick.
func (s *Simulation) applyPolicyEffects() {
	all := s.store.Flows()
	for _, p := range s.store.Policies() {
		if p.Status != policy.StatusActive || !s.pastLag(p) {
			continue
		}
		for _, f := range all {
			if policy.Applicable(p, f) {
				s.applyEffectsToFlow(f, p)
			}
		}
	}
}

// LegalPathwayThreshold is the legal pathway strength above which a policy
// can regularize undocumented cohorts.
const LegalPathwayThreshold = 70.0

// applyEffectsToFlow scales the flow's population by the policy's
// multiplier and may regularize an undocumented flow.
func (s *Simulation) applyEffectsToFlow(f *flows.Flow, p *policy.Policy) {
	effectiveness := policy.Effectiveness(p, s.cfg.EnforcementEffectiveness)

	change := 1 + (p.Effects.FlowMultiplier-1)*effectiveness
	f.SetPopulation(math.Floor(float64(f.PopulationSize) * change))

	if p.Effects.LegalPathwayStrength > LegalPathwayThreshold && f.LegalStatus == flows.LegalUndocumented {
		if s.rng.Float64() < effectiveness*0.3 {
			f.LegalStatus = flows.LegalDocumented
			f.DocumentationLevel = min(100, f.DocumentationLevel+30)
			f.VisaType = flows.VisaType(f.Subtype, f.LegalStatus)
		}
	}
	f.LastUpdated = s.now
}
