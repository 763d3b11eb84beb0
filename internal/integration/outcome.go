// Package integration tracks how migrant cohorts settle into a destination
// across economic, social, civic and cultural dimensions.
package integration

import (
	"time"

	"github.com/talgya/migration-sim/internal/entropy"
	"github.com/talgya/migration-sim/internal/flows"
)

// CivicStatus is the residence status of the cohort in the destination.
type CivicStatus string

const (
	CivicUndocumented      CivicStatus = "undocumented"
	CivicTemporary         CivicStatus = "temporary"
	CivicPermanentResident CivicStatus = "permanent_resident"
	CivicCitizen           CivicStatus = "citizen"
)

// Identity is the cultural identity the cohort gravitates towards.
type Identity string

const (
	IdentityOrigin      Identity = "origin"
	IdentityDestination Identity = "destination"
	IdentityBicultural  Identity = "bicultural"
)

// Economic integration. EmploymentRate is capped at 95; AverageIncome is
// unbounded; the rest are 0–100.
type Economic struct {
	EmploymentRate       float64 `json:"employment_rate"`
	AverageIncome        float64 `json:"average_income"`
	IncomeGrowth         float64 `json:"income_growth"` // percent, last tick
	JobSkillUtilization  float64 `json:"job_skill_utilization"`
	EntrepreneurshipRate float64 `json:"entrepreneurship_rate"`
	SocialMobility       float64 `json:"social_mobility"`
}

// Social integration. SocialNetworkSize grows without bound.
type Social struct {
	LanguageProficiency      float64 `json:"language_proficiency"`
	SocialNetworkSize        float64 `json:"social_network_size"`
	CommunityParticipation   float64 `json:"community_participation"`
	InterculturalFriendships float64 `json:"intercultural_friendships"`
	CulturalAdaptation       float64 `json:"cultural_adaptation"`
	DiscriminationExperience float64 `json:"discrimination_experience"`
}

// Civic integration.
type Civic struct {
	LegalStatus         CivicStatus `json:"legal_status"`
	CivicParticipation  float64     `json:"civic_participation"`
	PoliticalEngagement float64     `json:"political_engagement"`
	LegalKnowledge      float64     `json:"legal_knowledge"`
	InstitutionalTrust  float64     `json:"institutional_trust"`
}

// Cultural integration. CulturalRetention never drops below 30.
type Cultural struct {
	CulturalRetention    float64  `json:"cultural_retention"`
	CulturalAdoption     float64  `json:"cultural_adoption"`
	BilingualProficiency float64  `json:"bilingual_proficiency"`
	CulturalBridging     float64  `json:"cultural_bridging"`
	IdentityFormation    Identity `json:"identity_formation"`
}

// Challenges are barrier severities, each 0–100.
type Challenges struct {
	LanguageBarriers      float64 `json:"language_barriers"`
	CredentialRecognition float64 `json:"credential_recognition"`
	DiscriminationLevel   float64 `json:"discrimination_level"`
	CulturalBarriers      float64 `json:"cultural_barriers"`
	EconomicBarriers      float64 `json:"economic_barriers"`
	LegalBarriers         float64 `json:"legal_barriers"`
}

// Services records which support services the cohort uses.
type Services struct {
	LanguageClasses       bool `json:"language_classes"`
	JobTraining           bool `json:"job_training"`
	CredentialRecognition bool `json:"credential_recognition"`
	SocialServices        bool `json:"social_services"`
	LegalAid              bool `json:"legal_aid"`
	CulturalOrientation   bool `json:"cultural_orientation"`
	MentorshipPrograms    bool `json:"mentorship_programs"`
}

// Subjective holds self-reported measures. The engine sets them once.
type Subjective struct {
	OverallSatisfaction      float64 `json:"overall_satisfaction"`
	QualityOfLifeChange      float64 `json:"quality_of_life_change"`
	FutureIntentions         string  `json:"future_intentions"`
	RecommendationLikelihood float64 `json:"recommendation_likelihood"`
}

// Outcome is the integration record paired one-to-one with a flow.
type Outcome struct {
	ID                string `json:"id"`
	FlowID            string `json:"migration_flow_id"`
	CityID            string `json:"city_id"`
	TimeInDestination int    `json:"time_in_destination"` // months
	Stage             Stage  `json:"integration_stage"`

	Economic Economic `json:"economic_integration"`
	Social   Social   `json:"social_integration"`
	Civic    Civic    `json:"civic_integration"`
	Cultural Cultural `json:"cultural_integration"`

	Challenges Challenges `json:"integration_challenges"`
	Services   Services   `json:"service_utilization"`
	Outcomes   Subjective `json:"outcomes"`

	LastAssessment      time.Time `json:"last_assessment"`
	AssessmentFrequency int       `json:"assessment_frequency"` // months
	DataQuality         float64   `json:"data_quality"`
}

// NewOutcome builds the arrival-state record for a freshly created flow.
func NewOutcome(id string, f *flows.Flow, now time.Time, rng entropy.Source) *Outcome {
	lang := f.IntegrationFactors.LanguageProficiency
	similarity := f.IntegrationFactors.CulturalSimilarity
	undocumented := f.LegalStatus == flows.LegalUndocumented

	civic := CivicUndocumented
	if f.LegalStatus == flows.LegalDocumented {
		civic = CivicTemporary
	}
	legalBarriers := 20.0
	if undocumented {
		legalBarriers = 80
	}

	o := &Outcome{
		ID:                id,
		FlowID:            f.ID,
		CityID:            f.DestinationCityID,
		TimeInDestination: 0,
		Stage:             StageArrival,

		Economic: Economic{
			EmploymentRate:      max(0, 60-(100-lang)*0.3),
			AverageIncome:       f.EconomicProfile.AverageIncome * 0.7,
			JobSkillUtilization: lang * 0.6,
			SocialMobility:      30,
		},
		Social: Social{
			LanguageProficiency:      lang,
			SocialNetworkSize:        f.IntegrationFactors.SocialNetworks * 0.1,
			CommunityParticipation:   20,
			InterculturalFriendships: 10,
			CulturalAdaptation:       similarity,
			DiscriminationExperience: max(0, 50-similarity),
		},
		Civic: Civic{
			LegalStatus:         civic,
			CivicParticipation:  15,
			PoliticalEngagement: 5,
			LegalKnowledge:      30,
			InstitutionalTrust:  50,
		},
		Cultural: Cultural{
			CulturalRetention:    90,
			CulturalAdoption:     similarity,
			BilingualProficiency: lang * 0.8,
			CulturalBridging:     20,
			IdentityFormation:    IdentityOrigin,
		},
		Challenges: Challenges{
			LanguageBarriers:      max(0, 100-lang),
			CredentialRecognition: rng.Float64()*60 + 20,
			DiscriminationLevel:   max(0, 60-similarity),
			CulturalBarriers:      max(0, 80-similarity),
			EconomicBarriers:      rng.Float64()*40 + 20,
			LegalBarriers:         legalBarriers,
		},
		Outcomes: Subjective{
			OverallSatisfaction:      60,
			FutureIntentions:         "undecided",
			RecommendationLikelihood: 50,
		},
		LastAssessment:      now,
		AssessmentFrequency: 3,
		DataQuality:         75,
	}

	o.Services = Services{
		LanguageClasses:       rng.Float64() > 0.6,
		JobTraining:           rng.Float64() > 0.7,
		CredentialRecognition: rng.Float64() > 0.8,
		SocialServices:        rng.Float64() > 0.5,
	}
	if undocumented {
		o.Services.LegalAid = rng.Float64() > 0.4
	}
	o.Services.CulturalOrientation = rng.Float64() > 0.6
	o.Services.MentorshipPrograms = rng.Float64() > 0.8

	clampOutcome(o)
	return o
}

// HeadlineAverage is the mean of the four scores that drive the stage.
func (o *Outcome) HeadlineAverage() float64 {
	return (o.Economic.EmploymentRate +
		o.Social.LanguageProficiency +
		o.Civic.CivicParticipation +
		o.Cultural.CulturalAdoption) / 4
}

// Clone returns a copy. Outcome holds no reference types.
func (o *Outcome) Clone() Outcome {
	return *o
}
