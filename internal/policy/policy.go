// Package policy defines immigration policies and decides which flows they
// affect.
package policy

import (
	"slices"
	"time"

	"github.com/talgya/migration-sim/internal/flows"
)

// Type classifies a policy instrument.
type Type string

const (
	TypePointsSystem        Type = "points_system"
	TypeQuota               Type = "quota"
	TypeFamilyReunification Type = "family_reunification"
	TypeRefugeeProtection   Type = "refugee_protection"
	TypeEnforcement         Type = "enforcement"
	TypeAmnesty             Type = "amnesty"
	TypeIntegrationSupport  Type = "integration_support"
)

// Valid returns true if the policy type is known.
func (t Type) Valid() bool {
	switch t {
	case TypePointsSystem, TypeQuota, TypeFamilyReunification, TypeRefugeeProtection,
		TypeEnforcement, TypeAmnesty, TypeIntegrationSupport:
		return true
	default:
		return false
	}
}

// Parameters are advisory requirements. The engine does not enforce them.
type Parameters struct {
	AnnualQuota          int      `json:"annual_quota,omitempty" yaml:"annual_quota,omitempty"`
	PointsThreshold      float64  `json:"points_threshold,omitempty" yaml:"points_threshold,omitempty"`
	LanguageRequirement  float64  `json:"language_requirement,omitempty" yaml:"language_requirement,omitempty"`
	ProcessingTimeMonths int      `json:"processing_time_months,omitempty" yaml:"processing_time_months,omitempty"`
	RequiredDocuments    []string `json:"required_documents,omitempty" yaml:"required_documents,omitempty"`
}

// Effects are the policy's levers on flows.
type Effects struct {
	FlowMultiplier       float64 `json:"flow_multiplier" yaml:"flow_multiplier"`               // 0–10, 1 = neutral
	LegalPathwayStrength float64 `json:"legal_pathway_strength" yaml:"legal_pathway_strength"` // 0–100
	IllegalFlowReduction float64 `json:"illegal_flow_reduction" yaml:"illegal_flow_reduction"` // 0–100
	IntegrationSupport   float64 `json:"integration_support" yaml:"integration_support"`       // 0–100
	EconomicImpact       float64 `json:"economic_impact" yaml:"economic_impact"`               // -100–100
	SocialCohesion       float64 `json:"social_cohesion" yaml:"social_cohesion"`               // -100–100
}

// MaxFlowMultiplier bounds Effects.FlowMultiplier.
const MaxFlowMultiplier = 10.0

// Clamped returns the effects bounded to their documented ranges.
func (e Effects) Clamped() Effects {
	return Effects{
		FlowMultiplier:       flows.Clamp(e.FlowMultiplier, 0, MaxFlowMultiplier),
		LegalPathwayStrength: flows.Clamp100(e.LegalPathwayStrength),
		IllegalFlowReduction: flows.Clamp100(e.IllegalFlowReduction),
		IntegrationSupport:   flows.Clamp100(e.IntegrationSupport),
		EconomicImpact:       flows.Clamp(e.EconomicImpact, -100, 100),
		SocialCohesion:       flows.Clamp(e.SocialCohesion, -100, 100),
	}
}

// Finite reports whether every effect is a finite number.
func (e Effects) Finite() bool {
	return flows.Finite(e.FlowMultiplier, e.LegalPathwayStrength, e.IllegalFlowReduction,
		e.IntegrationSupport, e.EconomicImpact, e.SocialCohesion)
}

// Policy is a named rule set applied to matching flows.
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        Type   `json:"type"`

	Parameters Parameters `json:"parameters"`
	Effects    Effects    `json:"effects"`

	TargetGroups []flows.Subtype `json:"target_groups"`
	TargetCities []string        `json:"target_cities,omitempty"` // empty = every city

	ImplementationDate time.Time `json:"implementation_date"`
	EnforcementLevel   float64   `json:"enforcement_level"` // 0–100
	ImplementationCost float64   `json:"implementation_cost"`
	Status             Status    `json:"status"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Clone returns a deep copy.
func (p *Policy) Clone() Policy {
	c := *p
	c.TargetGroups = slices.Clone(p.TargetGroups)
	c.TargetCities = slices.Clone(p.TargetCities)
	c.Parameters.RequiredDocuments = slices.Clone(p.Parameters.RequiredDocuments)
	return c
}

// Applicable reports whether p affects f: the policy is active, targets the
// flow's subtype, and either names no cities or names the flow's destination.
// The implementation lag is checked separately by PastLag.
func Applicable(p *Policy, f *flows.Flow) bool {
	if p.Status != StatusActive {
		return false
	}
	if !slices.Contains(p.TargetGroups, f.Subtype) {
		return false
	}
	if len(p.TargetCities) > 0 && !slices.Contains(p.TargetCities, f.DestinationCityID) {
		return false
	}
	return true
}

// MonthsBetween counts whole calendar months from a to b. Negative when b
// is before a. A month ending on the last day of a shorter month counts as
// whole, so Jan 31 to Feb 28 is one month.
func MonthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return -MonthsBetween(b, a)
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() && !lastDayOfMonth(b) {
		months--
	}
	return months
}

func lastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}

// PastLag reports whether at least lagMonths have elapsed between the
// policy's implementation date and now.
func PastLag(p *Policy, now time.Time, lagMonths int) bool {
	return MonthsBetween(p.ImplementationDate, now) >= lagMonths
}

// Effectiveness is the share of a policy's effect that lands on a flow.
func Effectiveness(p *Policy, enforcementEffectiveness float64) float64 {
	return p.EnforcementLevel / 100 * enforcementEffectiveness
}
