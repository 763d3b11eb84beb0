package integration

import (
	"github.com/talgya/migration-sim/internal/config"
	"github.com/talgya/migration-sim/internal/flows"
)

// Time gates for slower-developing metrics, in months.
const (
	EntrepreneurshipMonths    = 24
	PoliticalEngagementMonths = 36
	PermanentResidencyMonths  = 60
	CitizenshipMonths         = 120
)

// MinRate keeps every cohort progressing however severe its barriers.
const MinRate = 0.001

// Rate derives the per-tick integration rate from service use and barriers.
func Rate(o *Outcome, cfg *config.Config) float64 {
	rate := cfg.CulturalAdaptationRate

	if o.Services.LanguageClasses {
		rate *= 1.3
	}
	if o.Services.JobTraining {
		rate *= 1.2
	}
	if o.Services.MentorshipPrograms {
		rate *= 1.4
	}

	barriers := (o.Challenges.LanguageBarriers +
		o.Challenges.DiscriminationLevel +
		o.Challenges.CulturalBarriers) / 300
	rate *= 1 - barriers*cfg.DiscriminationImpact

	return max(MinRate, rate)
}

// Progress advances o by one tick and returns the stage it held before.
// Stage never moves backwards.
func Progress(o *Outcome, cfg *config.Config) Stage {
	before := o.Stage
	o.TimeInDestination++

	rate := Rate(o, cfg)
	progressEconomic(o, rate, cfg)
	progressSocial(o, rate, cfg)
	progressCivic(o, rate)
	progressCultural(o, rate)
	clampOutcome(o)

	o.Stage = Later(o.Stage, StageFor(o.HeadlineAverage(), o.TimeInDestination))
	return before
}

func progressEconomic(o *Outcome, rate float64, cfg *config.Config) {
	e := &o.Economic

	e.EmploymentRate += rate * 100

	growth := rate * (e.JobSkillUtilization / 100) * cfg.SkillPremium
	e.AverageIncome *= 1 + growth
	e.IncomeGrowth = growth * 100

	e.JobSkillUtilization += rate * 50

	if o.TimeInDestination > EntrepreneurshipMonths {
		e.EntrepreneurshipRate += rate * cfg.EntrepreneurshipRate * 100
	}

	e.SocialMobility += rate * 30
}

func progressSocial(o *Outcome, rate float64, cfg *config.Config) {
	s := &o.Social

	s.LanguageProficiency += rate * 80
	s.SocialNetworkSize += rate * cfg.InterculturalContactRate * 1000
	s.CommunityParticipation += rate * 40
	s.InterculturalFriendships += rate * 35
	s.CulturalAdaptation += rate * 60
	s.DiscriminationExperience -= rate * 20
}

func progressCivic(o *Outcome, rate float64) {
	c := &o.Civic

	c.CivicParticipation += rate * 25
	if o.TimeInDestination > PoliticalEngagementMonths {
		c.PoliticalEngagement += rate * 15
	}
	c.LegalKnowledge += rate * 45
	c.InstitutionalTrust += rate * 30

	// Residence status escalates on elapsed time alone.
	if o.TimeInDestination > PermanentResidencyMonths && c.LegalStatus == CivicTemporary {
		c.LegalStatus = CivicPermanentResident
	}
	if o.TimeInDestination > CitizenshipMonths && c.LegalStatus == CivicPermanentResident {
		c.LegalStatus = CivicCitizen
	}
}

func progressCultural(o *Outcome, rate float64) {
	c := &o.Cultural

	c.CulturalAdoption += rate * 40
	c.CulturalRetention -= rate * 20 * (c.CulturalRetention / 100)
	c.BilingualProficiency += rate * 50
	c.CulturalBridging += rate * 35

	c.CulturalAdoption = flows.Clamp100(c.CulturalAdoption)
	c.CulturalRetention = flows.Clamp(c.CulturalRetention, MinCulturalRetention, 100)
	c.IdentityFormation = IdentityFor(c.CulturalAdoption, c.CulturalRetention, c.IdentityFormation)
}

// MinCulturalRetention is the floor retention stabilises at.
const MinCulturalRetention = 30.0

// IdentityFor picks the identity for the given adoption and retention. The
// checks run in priority order; when none match, current is kept.
func IdentityFor(adoption, retention float64, current Identity) Identity {
	switch {
	case adoption > 70 && retention > 50:
		return IdentityBicultural
	case adoption > 80:
		return IdentityDestination
	case retention > 80:
		return IdentityOrigin
	default:
		return current
	}
}

// MaxEmploymentRate caps employment; full employment is never reached.
const MaxEmploymentRate = 95.0

// clampOutcome bounds every documented score. Income and network size are
// only kept non-negative.
func clampOutcome(o *Outcome) {
	e := &o.Economic
	e.EmploymentRate = flows.Clamp(e.EmploymentRate, 0, MaxEmploymentRate)
	e.AverageIncome = max(0, e.AverageIncome)
	e.JobSkillUtilization = flows.Clamp100(e.JobSkillUtilization)
	e.EntrepreneurshipRate = flows.Clamp100(e.EntrepreneurshipRate)
	e.SocialMobility = flows.Clamp100(e.SocialMobility)

	s := &o.Social
	s.LanguageProficiency = flows.Clamp100(s.LanguageProficiency)
	s.SocialNetworkSize = max(0, s.SocialNetworkSize)
	s.CommunityParticipation = flows.Clamp100(s.CommunityParticipation)
	s.InterculturalFriendships = flows.Clamp100(s.InterculturalFriendships)
	s.CulturalAdaptation = flows.Clamp100(s.CulturalAdaptation)
	s.DiscriminationExperience = flows.Clamp100(s.DiscriminationExperience)

	c := &o.Civic
	c.CivicParticipation = flows.Clamp100(c.CivicParticipation)
	c.PoliticalEngagement = flows.Clamp100(c.PoliticalEngagement)
	c.LegalKnowledge = flows.Clamp100(c.LegalKnowledge)
	c.InstitutionalTrust = flows.Clamp100(c.InstitutionalTrust)

	cu := &o.Cultural
	cu.CulturalRetention = flows.Clamp(cu.CulturalRetention, MinCulturalRetention, 100)
	cu.CulturalAdoption = flows.Clamp100(cu.CulturalAdoption)
	cu.BilingualProficiency = flows.Clamp100(cu.BilingualProficiency)
	cu.CulturalBridging = flows.Clamp100(cu.CulturalBridging)

	ch := &o.Challenges
	ch.LanguageBarriers = flows.Clamp100(ch.LanguageBarriers)
	ch.CredentialRecognition = flows.Clamp100(ch.CredentialRecognition)
	ch.DiscriminationLevel = flows.Clamp100(ch.DiscriminationLevel)
	ch.CulturalBarriers = flows.Clamp100(ch.CulturalBarriers)
	ch.EconomicBarriers = flows.Clamp100(ch.EconomicBarriers)
	ch.LegalBarriers = flows.Clamp100(ch.LegalBarriers)
}
