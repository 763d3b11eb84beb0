// Package events records notable occurrences in the migration engine.
package events

import (
	"slices"
	"time"
)

// Type categorizes an event.
type Type string

const (
	TypeFlowChange           Type = "flow_change"
	TypePolicyImplementation Type = "policy_implementation"
	TypePolicyChange         Type = "policy_change"
	TypeCrisisResponse       Type = "crisis_response"
	TypeCapacityLimit        Type = "capacity_limit"
	TypeIntegrationMilestone Type = "integration_milestone"
)

// Severity ranks how much attention an event deserves.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Impact estimates the consequences of an event. The engine never feeds
// these back into flow state.
type Impact struct {
	Population float64 `json:"population_impact"`
	Economic   float64 `json:"economic_impact"`
	Social     float64 `json:"social_impact"`
	Policy     float64 `json:"policy_impact"`
}

// Event is an immutable log record.
type Event struct {
	ID               string    `json:"id"`
	Tick             uint64    `json:"tick"`
	Timestamp        time.Time `json:"timestamp"` // simulation clock
	Type             Type      `json:"type"`
	Description      string    `json:"description"`
	Severity         Severity  `json:"severity"`
	AffectedCities   []string  `json:"affected_cities"`
	AffectedFlows    []string  `json:"affected_flows"`
	AffectedPolicies []string  `json:"affected_policies,omitempty"`
	Impact           Impact    `json:"impact"`
	ReportedBy       string    `json:"reported_by"`
	Resolved         bool      `json:"resolved"`
	ResponseActions  []string  `json:"response_actions,omitempty"`
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	e.AffectedCities = slices.Clone(e.AffectedCities)
	e.AffectedFlows = slices.Clone(e.AffectedFlows)
	e.AffectedPolicies = slices.Clone(e.AffectedPolicies)
	e.ResponseActions = slices.Clone(e.ResponseActions)
	return e
}
