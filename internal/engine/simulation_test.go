package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"testing"

	"github.com/talgya/migration-sim/internal/config"
	"github.com/talgya/migration-sim/internal/entropy"
	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/flows"
	"github.com/talgya/migration-sim/internal/integration"
	"github.com/talgya/migration-sim/internal/lifecycle"
	"github.com/talgya/migration-sim/internal/policy"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSim builds a world with no default policies and no random events.
func newTestSim(t *testing.T, rng entropy.Source, mutate func(*config.Config)) *Simulation {
	t.Helper()
	cfg := config.Default()
	cfg.SeedDefaultPolicies = false
	cfg.RandomEventFrequency = 0
	if mutate != nil {
		mutate(cfg)
	}
	sim, err := New(cfg, WithSource(rng), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return sim
}

func economicFlow(dest string, pop int) FlowParams {
	return FlowParams{
		Type:              flows.TypeImmigration,
		Subtype:           flows.SubtypeEconomic,
		OriginCountry:     "Valdoria",
		DestinationCityID: dest,
		PopulationSize:    pop,
		EconomicProfile:   flows.EconomicProfile{AverageIncome: 30000},
		PushFactors:       flows.PushFactors{Economic: 60},
		PullFactors:       flows.PullFactors{Economic: 40, Social: 50},
		LegalStatus:       flows.LegalDocumented,
		IntegrationFactors: flows.IntegrationFactors{
			LanguageProficiency: 50,
			CulturalSimilarity:  50,
			SocialNetworks:      40,
		},
	}
}

func doublingPolicy(groups ...flows.Subtype) PolicyParams {
	return PolicyParams{
		Name:             "Open Doors",
		Type:             policy.TypeQuota,
		Effects:          policy.Effects{FlowMultiplier: 2.0},
		TargetGroups:     groups,
		EnforcementLevel: 100,
	}
}

func mustCreateFlow(t *testing.T, sim *Simulation, p FlowParams) flows.Flow {
	t.Helper()
	f, err := sim.CreateFlow(p)
	if err != nil {
		t.Fatalf("CreateFlow() error: %v", err)
	}
	return f
}

func mustCreatePolicy(t *testing.T, sim *Simulation, p PolicyParams) policy.Policy {
	t.Helper()
	pol, err := sim.CreatePolicy(p)
	if err != nil {
		t.Fatalf("CreatePolicy() error: %v", err)
	}
	return pol
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-6
}

func TestCreateFlow_DocumentedEconomic(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	f := mustCreateFlow(t, sim, economicFlow("harbor", 1000))

	if f.VisaType != "Work Visa" {
		t.Errorf("VisaType = %q, want Work Visa", f.VisaType)
	}
	if f.DocumentationLevel < 70 || f.DocumentationLevel > 100 {
		t.Errorf("DocumentationLevel = %v, want within [70, 100]", f.DocumentationLevel)
	}
	if f.Status != flows.StatusActive {
		t.Errorf("Status = %q, want active", f.Status)
	}
	if f.PopulationSize != 1000 {
		t.Errorf("PopulationSize = %d, want 1000", f.PopulationSize)
	}

	o, err := sim.OutcomeForFlow(f.ID)
	if err != nil {
		t.Fatalf("OutcomeForFlow() error: %v", err)
	}
	if o.Stage != integration.StageArrival {
		t.Errorf("Stage = %q, want arrival", o.Stage)
	}
	if o.TimeInDestination != 0 {
		t.Errorf("TimeInDestination = %d, want 0", o.TimeInDestination)
	}

	evs := sim.RecentEvents(1)
	if len(evs) != 1 {
		t.Fatalf("RecentEvents(1) returned %d events", len(evs))
	}
	e := evs[0]
	if e.Type != events.TypeFlowChange || e.Severity != events.SeverityMedium {
		t.Errorf("event = %s/%s, want flow_change/medium", e.Type, e.Severity)
	}
	if want := "New immigration flow created: 1000 people from Valdoria to harbor"; e.Description != want {
		t.Errorf("Description = %q, want %q", e.Description, want)
	}
	if !slices.Equal(e.AffectedFlows, []string{f.ID}) {
		t.Errorf("AffectedFlows = %v, want [%s]", e.AffectedFlows, f.ID)
	}
}

func TestCreateFlow_RefugeeOutcome(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	p := economicFlow("harbor", 500)
	p.Subtype = flows.SubtypeRefugee
	p.LegalStatus = flows.LegalRefugee
	p.IntegrationFactors.LanguageProficiency = 15

	f := mustCreateFlow(t, sim, p)
	o, err := sim.OutcomeForFlow(f.ID)
	if err != nil {
		t.Fatalf("OutcomeForFlow() error: %v", err)
	}

	if o.Civic.LegalStatus != integration.CivicUndocumented {
		t.Errorf("Civic.LegalStatus = %q, want undocumented", o.Civic.LegalStatus)
	}
	if !approx(o.Challenges.LanguageBarriers, 85) {
		t.Errorf("LanguageBarriers = %v, want 85", o.Challenges.LanguageBarriers)
	}
	if f.VisaType != "Refugee Status" {
		t.Errorf("VisaType = %q, want Refugee Status", f.VisaType)
	}
	if f.DocumentationLevel < 40 || f.DocumentationLevel > 80 {
		t.Errorf("DocumentationLevel = %v, want within [40, 80]", f.DocumentationLevel)
	}
}

func TestCreateFlow_EventImpacts(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	mustCreateFlow(t, sim, economicFlow("harbor", 2000))

	e := sim.RecentEvents(1)[0]
	if e.Severity != events.SeverityHigh {
		t.Errorf("Severity = %q, want high", e.Severity)
	}
	if !approx(e.Impact.Economic, 2000*30000*0.3) {
		t.Errorf("Impact.Economic = %v, want %v", e.Impact.Economic, 2000*30000*0.3)
	}
	if !approx(e.Impact.Social, -10) {
		t.Errorf("Impact.Social = %v, want -10", e.Impact.Social)
	}

	big := economicFlow("harbor", 100000)
	big.IntegrationFactors.CulturalSimilarity = 0
	mustCreateFlow(t, sim, big)
	if got := sim.RecentEvents(1)[0].Impact.Social; got != -20 {
		t.Errorf("Impact.Social = %v, want clamped -20", got)
	}
}

func TestCreateFlow_Validation(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)

	cases := []struct {
		name   string
		mutate func(*FlowParams)
	}{
		{"negative population", func(p *FlowParams) { p.PopulationSize = -1 }},
		{"missing destination", func(p *FlowParams) { p.DestinationCityID = "" }},
		{"unknown type", func(p *FlowParams) { p.Type = "teleport" }},
		{"unknown subtype", func(p *FlowParams) { p.Subtype = "tourist" }},
		{"unknown legal status", func(p *FlowParams) { p.LegalStatus = "pending" }},
		{"negative duration", func(p *FlowParams) { p.Duration = -3 }},
		{"completed status", func(p *FlowParams) { p.Status = flows.StatusCompleted }},
		{"NaN push factor", func(p *FlowParams) { p.PushFactors.Conflict = math.NaN() }},
		{"infinite pull factor", func(p *FlowParams) { p.PullFactors.Economic = math.Inf(1) }},
		{"NaN integration factor", func(p *FlowParams) { p.IntegrationFactors.LanguageProficiency = math.NaN() }},
		{"infinite income", func(p *FlowParams) { p.EconomicProfile.AverageIncome = math.Inf(-1) }},
		{"NaN age share", func(p *FlowParams) {
			p.Demographics.AgeDistribution = map[string]float64{"18-35": math.NaN()}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := economicFlow("harbor", 100)
			tc.mutate(&p)
			if _, err := sim.CreateFlow(p); !errors.Is(err, ErrInvalidFlow) {
				t.Errorf("CreateFlow() error = %v, want ErrInvalidFlow", err)
			}
		})
	}
	if n := len(sim.Flows()); n != 0 {
		t.Errorf("rejected flows were stored: %d", n)
	}
}

func TestAdvance_TwelveTicks(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	f := mustCreateFlow(t, sim, economicFlow("harbor", 1000))

	for i := 0; i < 12; i++ {
		sim.Advance()
	}

	o, err := sim.OutcomeForFlow(f.ID)
	if err != nil {
		t.Fatalf("OutcomeForFlow() error: %v", err)
	}
	if o.TimeInDestination != 12 {
		t.Errorf("TimeInDestination = %d, want 12", o.TimeInDestination)
	}
	if o.Stage == integration.StageArrival {
		t.Error("Stage still arrival after 12 ticks")
	}
	if sim.Tick() != 12 {
		t.Errorf("Tick() = %d, want 12", sim.Tick())
	}
	if want := config.DefaultStartTime.AddDate(1, 0, 0); !sim.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", sim.Now(), want)
	}
}

func TestAdvance_PopulationUpdate(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	f := mustCreateFlow(t, sim, economicFlow("harbor", 1000))

	sim.Advance()

	got, err := sim.Flow(f.ID)
	if err != nil {
		t.Fatalf("Flow() error: %v", err)
	}
	// Zero volatility, no policies, network effect 1000/10000*0.4.
	if got.PopulationSize != 1040 {
		t.Errorf("PopulationSize = %d, want 1040", got.PopulationSize)
	}
	// Pressure (60-40)/100*0.8 moves push up and pull down by 0.016.
	if !approx(got.PushFactors.Economic, 60.016) || !approx(got.PullFactors.Economic, 39.984) {
		t.Errorf("economic push/pull = %v/%v, want 60.016/39.984", got.PushFactors.Economic, got.PullFactors.Economic)
	}
	// Network step sees 1040 people: social pull +1040/10000*0.4*10.
	if !approx(got.PullFactors.Social, 50.416) {
		t.Errorf("PullFactors.Social = %v, want 50.416", got.PullFactors.Social)
	}
}

func TestCreatePolicy_LagGateAtCreation(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	mustCreatePolicy(t, sim, doublingPolicy(flows.SubtypeEconomic))

	f := mustCreateFlow(t, sim, economicFlow("harbor", 1000))
	if f.PopulationSize >= 2000 {
		t.Errorf("PopulationSize = %d, want < 2000 before the lag elapses", f.PopulationSize)
	}
	if f.PopulationSize != 1000 {
		t.Errorf("PopulationSize = %d, want 1000", f.PopulationSize)
	}
}

func TestCreatePolicy_PastLagAppliesImmediately(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	existing := mustCreateFlow(t, sim, economicFlow("harbor", 1000))

	p := doublingPolicy(flows.SubtypeEconomic)
	p.ImplementationDate = config.DefaultStartTime.AddDate(-1, 0, 0)
	mustCreatePolicy(t, sim, p)

	// Effectiveness 100/100 * 0.75 scales the doubling to 1.75.
	got, _ := sim.Flow(existing.ID)
	if got.PopulationSize != 1750 {
		t.Errorf("existing flow PopulationSize = %d, want 1750", got.PopulationSize)
	}

	fresh := mustCreateFlow(t, sim, economicFlow("harbor", 1000))
	if fresh.PopulationSize != 1750 {
		t.Errorf("new flow PopulationSize = %d, want 1750", fresh.PopulationSize)
	}

	other := economicFlow("harbor", 1000)
	other.Subtype = flows.SubtypeStudent
	if f := mustCreateFlow(t, sim, other); f.PopulationSize != 1000 {
		t.Errorf("untargeted flow PopulationSize = %d, want 1000", f.PopulationSize)
	}
}

func TestCreatePolicy_TargetCities(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	p := doublingPolicy(flows.SubtypeEconomic)
	p.ImplementationDate = config.DefaultStartTime.AddDate(-1, 0, 0)
	p.TargetCities = []string{"harbor"}
	mustCreatePolicy(t, sim, p)

	if f := mustCreateFlow(t, sim, economicFlow("harbor", 1000)); f.PopulationSize != 1750 {
		t.Errorf("targeted city PopulationSize = %d, want 1750", f.PopulationSize)
	}
	if f := mustCreateFlow(t, sim, economicFlow("uplands", 1000)); f.PopulationSize != 1000 {
		t.Errorf("other city PopulationSize = %d, want 1000", f.PopulationSize)
	}
}

func TestCreatePolicy_EventAndClamping(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	p := PolicyParams{
		Name:               "Regional Integration Fund",
		Type:               policy.TypeIntegrationSupport,
		Effects:            policy.Effects{FlowMultiplier: 25, LegalPathwayStrength: 140, SocialCohesion: 12},
		TargetGroups:       []flows.Subtype{flows.SubtypeRefugee},
		TargetCities:       []string{"harbor"},
		EnforcementLevel:   50,
		ImplementationCost: 4_000_000,
	}
	pol := mustCreatePolicy(t, sim, p)

	if pol.Effects.FlowMultiplier != policy.MaxFlowMultiplier {
		t.Errorf("FlowMultiplier = %v, want clamped %v", pol.Effects.FlowMultiplier, policy.MaxFlowMultiplier)
	}
	if pol.Effects.LegalPathwayStrength != 100 {
		t.Errorf("LegalPathwayStrength = %v, want clamped 100", pol.Effects.LegalPathwayStrength)
	}
	if pol.Status != policy.StatusActive {
		t.Errorf("Status = %q, want active", pol.Status)
	}

	e := sim.RecentEvents(1)[0]
	if e.Type != events.TypePolicyImplementation || e.Severity != events.SeverityMedium {
		t.Errorf("event = %s/%s, want policy_implementation/medium", e.Type, e.Severity)
	}
	if e.Description != "New immigration policy implemented: Regional Integration Fund" {
		t.Errorf("Description = %q", e.Description)
	}
	if e.Impact.Economic != 4_000_000 || e.Impact.Social != 12 || e.Impact.Policy != 100 {
		t.Errorf("Impact = %+v", e.Impact)
	}
	if !slices.Equal(e.AffectedCities, []string{"harbor"}) || !slices.Equal(e.AffectedPolicies, []string{pol.ID}) {
		t.Errorf("affected cities/policies = %v/%v", e.AffectedCities, e.AffectedPolicies)
	}
}

func TestCreatePolicy_Validation(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)

	cases := []struct {
		name   string
		mutate func(*PolicyParams)
	}{
		{"empty name", func(p *PolicyParams) { p.Name = "  " }},
		{"unknown type", func(p *PolicyParams) { p.Type = "lottery" }},
		{"no target groups", func(p *PolicyParams) { p.TargetGroups = nil }},
		{"unknown target group", func(p *PolicyParams) { p.TargetGroups = []flows.Subtype{"tourist"} }},
		{"enforcement above 100", func(p *PolicyParams) { p.EnforcementLevel = 150 }},
		{"unknown status", func(p *PolicyParams) { p.Status = "pending" }},
		{"NaN enforcement", func(p *PolicyParams) { p.EnforcementLevel = math.NaN() }},
		{"infinite enforcement", func(p *PolicyParams) { p.EnforcementLevel = math.Inf(1) }},
		{"NaN flow multiplier", func(p *PolicyParams) { p.Effects.FlowMultiplier = math.NaN() }},
		{"infinite legal pathway", func(p *PolicyParams) { p.Effects.LegalPathwayStrength = math.Inf(1) }},
		{"NaN cost", func(p *PolicyParams) { p.ImplementationCost = math.NaN() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := doublingPolicy(flows.SubtypeEconomic)
			tc.mutate(&p)
			if _, err := sim.CreatePolicy(p); !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("CreatePolicy() error = %v, want ErrInvalidPolicy", err)
			}
		})
	}
}

func TestNonFiniteInputs_KeepInvariants(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), func(c *config.Config) {
		c.PolicyImplementationLag = 0
	})

	nan := doublingPolicy(flows.SubtypeEconomic)
	nan.EnforcementLevel = math.NaN()
	if _, err := sim.CreatePolicy(nan); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("CreatePolicy(NaN enforcement) error = %v, want ErrInvalidPolicy", err)
	}
	if n := len(sim.Policies()); n != 0 {
		t.Fatalf("rejected policy was stored: %d", n)
	}

	f := mustCreateFlow(t, sim, economicFlow("harbor", 1000))
	if f.PopulationSize != 1000 {
		t.Errorf("PopulationSize = %d, want 1000", f.PopulationSize)
	}
	for range 12 {
		sim.Advance()
	}
	for _, f := range sim.Flows() {
		if f.PopulationSize < 0 {
			t.Errorf("flow %s population negative: %d", f.ID, f.PopulationSize)
		}
	}
	for _, o := range sim.Outcomes() {
		for name, v := range map[string]float64{
			"language":   o.Social.LanguageProficiency,
			"employment": o.Economic.EmploymentRate,
		} {
			if math.IsNaN(v) || v < 0 || v > 100 {
				t.Errorf("outcome %s %s = %v, want within [0, 100]", o.ID, name, v)
			}
		}
	}
}

func TestPolicyLagGate_OverTicks(t *testing.T) {
	control := newTestSim(t, entropy.NewSequence(0.5), nil)
	treated := newTestSim(t, entropy.NewSequence(0.5), nil)
	mustCreatePolicy(t, treated, doublingPolicy(flows.SubtypeEconomic))

	cf := mustCreateFlow(t, control, economicFlow("harbor", 1000))
	tf := mustCreateFlow(t, treated, economicFlow("harbor", 1000))

	lag := config.Default().PolicyImplementationLag
	for tick := 1; tick <= lag; tick++ {
		control.Advance()
		treated.Advance()

		c, _ := control.Flow(cf.ID)
		tr, _ := treated.Flow(tf.ID)
		if tick < lag && c.PopulationSize != tr.PopulationSize {
			t.Fatalf("tick %d: policy took effect early: %d vs %d", tick, tr.PopulationSize, c.PopulationSize)
		}
		if tick == lag && tr.PopulationSize <= c.PopulationSize {
			t.Fatalf("tick %d: policy should apply once the lag elapses: %d vs %d", tick, tr.PopulationSize, c.PopulationSize)
		}
	}
}

func TestScenario_CapacityBreach(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	for _, pop := range []int{40000, 35000, 30000} {
		mustCreateFlow(t, sim, economicFlow("metro", pop))
	}
	mustCreateFlow(t, sim, economicFlow("village", 500))

	sim.Advance()

	var breaches []events.Event
	for _, e := range sim.RecentEvents(0) {
		if e.Type == events.TypeCapacityLimit {
			breaches = append(breaches, e)
		}
	}
	if len(breaches) != 1 {
		t.Fatalf("got %d capacity events, want 1", len(breaches))
	}
	e := breaches[0]
	if e.Severity != events.SeverityCritical {
		t.Errorf("Severity = %q, want critical", e.Severity)
	}
	if !slices.Equal(e.AffectedCities, []string{"metro"}) {
		t.Errorf("AffectedCities = %v, want [metro]", e.AffectedCities)
	}
	if e.Description != "Migration capacity exceeded in metro" {
		t.Errorf("Description = %q", e.Description)
	}
	total := sim.Stats().Destinations["metro"]
	if e.Impact.Population != float64(total-CapacityLimit) {
		t.Errorf("Impact.Population = %v, want overflow %d", e.Impact.Population, total-CapacityLimit)
	}
	if e.Impact.Economic != -500_000 || e.Impact.Social != -15 || e.Impact.Policy != -20 {
		t.Errorf("Impact = %+v", e.Impact)
	}
}

func TestCapacity_Disabled(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), func(c *config.Config) { c.CapacityConstraints = false })
	mustCreateFlow(t, sim, economicFlow("metro", 150000))
	sim.Advance()

	for _, e := range sim.RecentEvents(0) {
		if e.Type == events.TypeCapacityLimit {
			t.Fatalf("capacity event logged with constraints disabled: %+v", e)
		}
	}
}

func TestAdvance_StepOrder(t *testing.T) {
	var got []string
	cfg := config.Default()
	cfg.SeedDefaultPolicies = false
	sim, err := New(cfg,
		WithSource(entropy.NewSequence(0.5)),
		WithLogger(quietLogger()),
		WithStepObserver(func(tick uint64, name string) {
			if tick != 1 {
				t.Errorf("observer tick = %d, want 1", tick)
			}
			got = append(got, name)
		}),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	sim.Advance()

	want := []string{StepFlows, StepIntegration, StepPolicies, StepRandomEvents, StepNetwork, StepCapacity}
	if !slices.Equal(got, want) {
		t.Errorf("step order = %v, want %v", got, want)
	}
	if !slices.Equal(sim.StepNames(), want) {
		t.Errorf("StepNames() = %v, want %v", sim.StepNames(), want)
	}
}

func TestAdvance_Invariants(t *testing.T) {
	sim, err := New(nil, WithSource(entropy.NewSeeded(7)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	mustCreateFlow(t, sim, economicFlow("harbor", 5000))
	refugees := economicFlow("harbor", 800)
	refugees.Subtype = flows.SubtypeRefugee
	refugees.LegalStatus = flows.LegalRefugee
	mustCreateFlow(t, sim, refugees)
	irregular := economicFlow("uplands", 300)
	irregular.Subtype = flows.SubtypeIllegal
	irregular.LegalStatus = flows.LegalUndocumented
	mustCreateFlow(t, sim, irregular)

	amnesty := PolicyParams{
		Name:             "Regularization Drive",
		Type:             policy.TypeAmnesty,
		Effects:          policy.Effects{FlowMultiplier: 0.9, LegalPathwayStrength: 90},
		TargetGroups:     []flows.Subtype{flows.SubtypeIllegal},
		EnforcementLevel: 80,
	}
	mustCreatePolicy(t, sim, amnesty)

	stages := make(map[string]int)
	for tick := 1; tick <= 60; tick++ {
		sim.Advance()

		for _, f := range sim.Flows() {
			if f.PopulationSize < 0 {
				t.Fatalf("tick %d: flow %s population %d", tick, f.ID, f.PopulationSize)
			}
			for name, v := range map[string]float64{
				"push.economic": f.PushFactors.Economic,
				"pull.economic": f.PullFactors.Economic,
				"pull.social":   f.PullFactors.Social,
				"documentation": f.DocumentationLevel,
			} {
				if v < 0 || v > 100 {
					t.Fatalf("tick %d: flow %s %s = %v", tick, f.ID, name, v)
				}
			}
		}
		for _, o := range sim.Outcomes() {
			if o.TimeInDestination != tick {
				t.Fatalf("tick %d: outcome %s TimeInDestination = %d", tick, o.ID, o.TimeInDestination)
			}
			rank := o.Stage.Rank()
			if rank < stages[o.ID] {
				t.Fatalf("tick %d: outcome %s regressed to %s", tick, o.ID, o.Stage)
			}
			stages[o.ID] = rank
			if o.Social.LanguageProficiency > 100 || o.Civic.CivicParticipation > 100 || o.Cultural.CulturalAdoption > 100 {
				t.Fatalf("tick %d: outcome %s score above 100", tick, o.ID)
			}
		}
	}
}

func TestEventLog_Bounded(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), func(c *config.Config) { c.RandomEventFrequency = 1 })
	mustCreateFlow(t, sim, economicFlow("metro", 200000))

	for i := 0; i < 600; i++ {
		sim.Advance()
	}

	all := sim.RecentEvents(0)
	if len(all) != events.DefaultCapacity {
		t.Fatalf("len(RecentEvents(0)) = %d, want %d", len(all), events.DefaultCapacity)
	}
	for i := 1; i < len(all); i++ {
		if all[i].Tick > all[i-1].Tick {
			t.Fatalf("events not newest first at %d: tick %d after %d", i, all[i].Tick, all[i-1].Tick)
		}
	}
	if all[0].Tick != 600 {
		t.Errorf("newest event tick = %d, want 600", all[0].Tick)
	}
	if all[len(all)-1].Tick == 0 {
		t.Error("the creation event should have been evicted")
	}

	chrono := sim.Events()
	if len(chrono) != len(all) {
		t.Fatalf("len(Events()) = %d, want %d", len(chrono), len(all))
	}
	for i := range chrono {
		if chrono[i].ID != all[len(all)-1-i].ID {
			t.Fatalf("Events()[%d] = %s, want %s (oldest first)", i, chrono[i].ID, all[len(all)-1-i].ID)
		}
	}
}

func TestRandomEvents(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.9), func(c *config.Config) { c.RandomEventFrequency = 1 })
	mustCreateFlow(t, sim, economicFlow("harbor", 1000))

	sim.Advance()

	var found *events.Event
	for _, e := range sim.RecentEvents(0) {
		if e.Description == "Significant change in migration patterns detected" {
			found = &e
			break
		}
	}
	if found == nil {
		t.Fatal("no random event logged")
	}
	if found.Type != events.TypeFlowChange || found.Severity != events.SeverityHigh {
		t.Errorf("event = %s/%s, want flow_change/high", found.Type, found.Severity)
	}
	if !slices.Equal(found.AffectedCities, []string{"harbor"}) {
		t.Errorf("AffectedCities = %v", found.AffectedCities)
	}
	if found.Impact.Population != 900 || !approx(found.Impact.Economic, 400_000) {
		t.Errorf("Impact = %+v", found.Impact)
	}
}

func TestRandomEvents_NoActiveFlows(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.1), func(c *config.Config) { c.RandomEventFrequency = 1 })
	p := economicFlow("harbor", 1000)
	p.Status = flows.StatusPlanned
	mustCreateFlow(t, sim, p)

	sim.Advance()

	for _, e := range sim.RecentEvents(0) {
		if e.Description == randomEventDescriptions[e.Type] {
			t.Fatalf("random event fired with no active flows: %+v", e)
		}
	}
}

func TestRegularization(t *testing.T) {
	// Documentation draw 0.5, then the regularization trial draws 0.1.
	sim := newTestSim(t, entropy.NewSequence(0.5, 0.1), nil)
	mustCreatePolicy(t, sim, PolicyParams{
		Name:               "Pathway to Status",
		Type:               policy.TypeAmnesty,
		Effects:            policy.Effects{FlowMultiplier: 1, LegalPathwayStrength: 90},
		TargetGroups:       []flows.Subtype{flows.SubtypeIllegal},
		EnforcementLevel:   100,
		ImplementationDate: config.DefaultStartTime.AddDate(-2, 0, 0), // past the lag
	})

	p := economicFlow("harbor", 1000)
	p.Subtype = flows.SubtypeIllegal
	p.LegalStatus = flows.LegalUndocumented
	f := mustCreateFlow(t, sim, p)

	if f.LegalStatus != flows.LegalDocumented {
		t.Fatalf("LegalStatus = %q, want documented", f.LegalStatus)
	}
	if !approx(f.DocumentationLevel, 45) {
		t.Errorf("DocumentationLevel = %v, want 45", f.DocumentationLevel)
	}
	if f.VisaType != flows.GeneralVisa {
		t.Errorf("VisaType = %q, want %q", f.VisaType, flows.GeneralVisa)
	}
	if f.PopulationSize != 1000 {
		t.Errorf("PopulationSize = %d, want 1000", f.PopulationSize)
	}
}

func TestFlowCompletion(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	p := economicFlow("harbor", 1000)
	p.Duration = 2
	f := mustCreateFlow(t, sim, p)

	if f.EndDate == nil || !f.EndDate.Equal(config.DefaultStartTime.AddDate(0, 2, 0)) {
		t.Fatalf("EndDate = %v, want start + 2 months", f.EndDate)
	}

	for tick := 1; tick <= 3; tick++ {
		sim.Advance()
		got, _ := sim.Flow(f.ID)
		want := flows.StatusActive
		if tick == 3 {
			want = flows.StatusCompleted
		}
		if got.Status != want {
			t.Errorf("tick %d: Status = %q, want %q", tick, got.Status, want)
		}
	}
}

func TestTransitionPolicy(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	p := doublingPolicy(flows.SubtypeEconomic)
	p.ImplementationDate = config.DefaultStartTime.AddDate(-1, 0, 0)
	pol := mustCreatePolicy(t, sim, p)

	suspended, err := sim.TransitionPolicy(ctx, pol.ID, policy.EventSuspend)
	if err != nil {
		t.Fatalf("TransitionPolicy(suspend) error: %v", err)
	}
	if suspended.Status != policy.StatusSuspended {
		t.Errorf("Status = %q, want suspended", suspended.Status)
	}
	if e := sim.RecentEvents(1)[0]; e.Type != events.TypePolicyChange {
		t.Errorf("event type = %q, want policy_change", e.Type)
	}

	// A suspended policy no longer acts on new flows.
	if f := mustCreateFlow(t, sim, economicFlow("harbor", 1000)); f.PopulationSize != 1000 {
		t.Errorf("PopulationSize = %d under a suspended policy, want 1000", f.PopulationSize)
	}

	_, err = sim.TransitionPolicy(ctx, pol.ID, policy.EventActivate)
	var tErr *lifecycle.TransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("TransitionPolicy(activate) error = %v, want TransitionError", err)
	}
	if tErr.Current != string(policy.StatusSuspended) {
		t.Errorf("TransitionError.Current = %q, want suspended", tErr.Current)
	}

	if _, err := sim.TransitionPolicy(ctx, "policy_missing", policy.EventExpire); !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("TransitionPolicy(missing) error = %v, want ErrPolicyNotFound", err)
	}
}

func TestTransitionFlow(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	f := mustCreateFlow(t, sim, economicFlow("harbor", 1000))

	got, err := sim.TransitionFlow(ctx, f.ID, flows.EventInterrupt)
	if err != nil {
		t.Fatalf("TransitionFlow(interrupt) error: %v", err)
	}
	if got.Status != flows.StatusInterrupted {
		t.Errorf("Status = %q, want interrupted", got.Status)
	}

	if _, err := sim.TransitionFlow(ctx, f.ID, flows.EventStart); err == nil {
		t.Error("start from interrupted should be rejected")
	}
	if _, err := sim.TransitionFlow(ctx, f.ID, flows.EventComplete); err != nil {
		t.Errorf("TransitionFlow(complete) error: %v", err)
	}
	if _, err := sim.TransitionFlow(ctx, f.ID, flows.EventResume); err == nil {
		t.Error("completed flows should be terminal")
	}
	if _, err := sim.TransitionFlow(ctx, "flow_missing", flows.EventStart); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("TransitionFlow(missing) error = %v, want ErrFlowNotFound", err)
	}
}

func TestLookups_NotFound(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)

	if _, err := sim.Flow("nope"); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Flow() error = %v, want ErrFlowNotFound", err)
	}
	if _, err := sim.Policy("nope"); !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("Policy() error = %v, want ErrPolicyNotFound", err)
	}
	if _, err := sim.Outcome("nope"); !errors.Is(err, ErrOutcomeNotFound) {
		t.Errorf("Outcome() error = %v, want ErrOutcomeNotFound", err)
	}
	if _, err := sim.OutcomeForFlow("nope"); !errors.Is(err, ErrOutcomeNotFound) {
		t.Errorf("OutcomeForFlow() error = %v, want ErrOutcomeNotFound", err)
	}
	if got := sim.CityFlows("nowhere"); len(got) != 0 {
		t.Errorf("CityFlows(nowhere) = %v, want empty", got)
	}
	if st := sim.Stats(); st.AvgIntegration != 0 || st.Outcomes != 0 {
		t.Errorf("Stats() on an empty world = %+v", st)
	}
}

func TestAccessors(t *testing.T) {
	sim := newTestSim(t, entropy.NewSequence(0.5), nil)
	p := economicFlow("harbor", 1000)
	p.OriginCityID = "inland"
	p.Demographics.Languages = []string{"es"}
	f := mustCreateFlow(t, sim, p)
	mustCreateFlow(t, sim, economicFlow("uplands", 200))

	if got := sim.CityFlows("inland"); len(got) != 1 || got[0].ID != f.ID {
		t.Errorf("CityFlows(inland) = %v, want the flow by origin", got)
	}
	if got := sim.CityFlows("harbor"); len(got) != 1 {
		t.Errorf("CityFlows(harbor) returned %d flows, want 1", len(got))
	}
	if got := sim.CityOutcomes("uplands"); len(got) != 1 || got[0].CityID != "uplands" {
		t.Errorf("CityOutcomes(uplands) = %v", got)
	}

	all := sim.Flows()
	all[0].Demographics.Languages[0] = "mutated"
	all[0].PopulationSize = 0
	again, _ := sim.Flow(f.ID)
	if again.Demographics.Languages[0] != "es" || again.PopulationSize != 1000 {
		t.Error("mutating an accessor result changed engine state")
	}

	o, err := sim.OutcomeForFlow(f.ID)
	if err != nil {
		t.Fatalf("OutcomeForFlow() error: %v", err)
	}
	if byID, err := sim.Outcome(o.ID); err != nil || byID.FlowID != f.ID {
		t.Errorf("Outcome(%s) = %v, %v", o.ID, byID, err)
	}
}

func TestNew_DefaultPolicies(t *testing.T) {
	sim, err := New(nil, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	pols := sim.Policies()
	if len(pols) != 3 {
		t.Fatalf("len(Policies()) = %d, want 3", len(pols))
	}
	for _, p := range pols {
		if p.Status != policy.StatusActive || !p.ImplementationDate.Equal(config.DefaultStartTime) {
			t.Errorf("default policy %s = %s implemented %v", p.ID, p.Status, p.ImplementationDate)
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.TimeStep = "fortnight"
	if _, err := New(cfg); err == nil {
		t.Error("New() should reject an invalid config")
	}
}

func TestDeterminism(t *testing.T) {
	run := func() Snapshot {
		cfg := config.Default()
		cfg.RandomEventFrequency = 0.5
		sim, err := New(cfg, WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		mustCreateFlow(t, sim, economicFlow("harbor", 3000))
		irregular := economicFlow("harbor", 700)
		irregular.Subtype = flows.SubtypeIllegal
		irregular.LegalStatus = flows.LegalUndocumented
		mustCreateFlow(t, sim, irregular)
		mustCreatePolicy(t, sim, doublingPolicy(flows.SubtypeIllegal))
		for i := 0; i < 24; i++ {
			sim.Advance()
		}
		return sim.Snapshot()
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Error("two runs with the same seed diverged")
	}
}

func TestSnapshotRestore(t *testing.T) {
	cfg := config.Default()
	cfg.SeedDefaultPolicies = false
	sim, err := New(cfg, WithSource(entropy.NewSequence(0.5)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	f := mustCreateFlow(t, sim, economicFlow("harbor", 1000))
	mustCreatePolicy(t, sim, doublingPolicy(flows.SubtypeStudent))
	for i := 0; i < 3; i++ {
		sim.Advance()
	}

	snap := sim.Snapshot()
	restored, err := Restore(cfg, snap, WithSource(entropy.NewSequence(0.5)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	if restored.Tick() != 3 || !restored.Now().Equal(sim.Now()) {
		t.Errorf("restored clock = %d/%v, want 3/%v", restored.Tick(), restored.Now(), sim.Now())
	}
	if !reflect.DeepEqual(restored.Snapshot(), snap) {
		t.Error("restored state differs from the snapshot")
	}

	restored.Advance()
	sim.Advance()
	a, _ := sim.OutcomeForFlow(f.ID)
	b, _ := restored.OutcomeForFlow(f.ID)
	if b.TimeInDestination != 4 || !reflect.DeepEqual(a, b) {
		t.Errorf("restored world diverged after one tick: %d months", b.TimeInDestination)
	}
}

func TestRestore_OrphanOutcome(t *testing.T) {
	snap := Snapshot{Outcomes: []integration.Outcome{{ID: "out_1", FlowID: "flow_gone"}}}
	if _, err := Restore(nil, snap, WithLogger(quietLogger())); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Restore() error = %v, want ErrFlowNotFound", err)
	}
}
