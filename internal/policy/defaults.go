package policy

import (
	"time"

	"github.com/talgya/migration-sim/internal/flows"
)

// Defaults returns the baseline policies a new world starts with, all
// implemented at start.
func Defaults(start time.Time) []Policy {
	return []Policy{
		{
			ID:          "policy_skilled_worker_program",
			Name:        "Skilled Worker Program",
			Description: "Points-based admission for workers and students with in-demand skills",
			Type:        TypePointsSystem,
			Parameters: Parameters{
				AnnualQuota:          50000,
				PointsThreshold:      67,
				LanguageRequirement:  60,
				ProcessingTimeMonths: 6,
				RequiredDocuments:    []string{"passport", "credential_assessment", "language_test"},
			},
			Effects: Effects{
				FlowMultiplier:       1.2,
				LegalPathwayStrength: 75,
				IllegalFlowReduction: 10,
				IntegrationSupport:   50,
				EconomicImpact:       40,
				SocialCohesion:       5,
			},
			TargetGroups:       []flows.Subtype{flows.SubtypeEconomic, flows.SubtypeStudent, flows.SubtypeTemporaryWorker},
			ImplementationDate: start,
			EnforcementLevel:   70,
			ImplementationCost: 25_000_000,
			Status:             StatusActive,
		},
		{
			ID:          "policy_refugee_protection_framework",
			Name:        "Refugee Protection Framework",
			Description: "Resettlement and asylum processing for people fleeing conflict",
			Type:        TypeRefugeeProtection,
			Parameters: Parameters{
				AnnualQuota:          20000,
				ProcessingTimeMonths: 12,
				RequiredDocuments:    []string{"identity_statement"},
			},
			Effects: Effects{
				FlowMultiplier:       1.1,
				LegalPathwayStrength: 80,
				IntegrationSupport:   70,
				EconomicImpact:       -10,
				SocialCohesion:       -5,
			},
			TargetGroups:       []flows.Subtype{flows.SubtypeRefugee},
			ImplementationDate: start,
			EnforcementLevel:   60,
			ImplementationCost: 40_000_000,
			Status:             StatusActive,
		},
		{
			ID:          "policy_family_reunification_program",
			Name:        "Family Reunification Program",
			Description: "Sponsorship of spouses, children and parents of residents",
			Type:        TypeFamilyReunification,
			Parameters: Parameters{
				ProcessingTimeMonths: 9,
				RequiredDocuments:    []string{"sponsorship_agreement", "relationship_proof"},
			},
			Effects: Effects{
				FlowMultiplier:       1.15,
				LegalPathwayStrength: 65,
				IntegrationSupport:   40,
				EconomicImpact:       10,
				SocialCohesion:       15,
			},
			TargetGroups:       []flows.Subtype{flows.SubtypeFamilyReunification},
			ImplementationDate: start,
			EnforcementLevel:   65,
			ImplementationCost: 8_000_000,
			Status:             StatusActive,
		},
	}
}
