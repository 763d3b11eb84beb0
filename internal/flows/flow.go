// Package flows defines migration flows: cohorts of people moving together
// between an origin and a destination.
package flows

import (
	"maps"
	"math"
	"slices"
	"time"
)

// MaxPopulation caps a single flow so compounding growth saturates instead
// of overflowing.
const MaxPopulation = 10_000_000_000

// Type is the direction of a flow relative to the destination.
type Type string

const (
	TypeImmigration Type = "immigration"
	TypeEmigration  Type = "emigration"
	TypeInternal    Type = "internal"
)

// Valid returns true if the flow type is known.
func (t Type) Valid() bool {
	switch t {
	case TypeImmigration, TypeEmigration, TypeInternal:
		return true
	default:
		return false
	}
}

// Subtype is the migration category policies target.
type Subtype string

const (
	SubtypeLegal               Subtype = "legal"
	SubtypeIllegal             Subtype = "illegal"
	SubtypeRefugee             Subtype = "refugee"
	SubtypeEconomic            Subtype = "economic"
	SubtypeFamilyReunification Subtype = "family_reunification"
	SubtypeStudent             Subtype = "student"
	SubtypeTemporaryWorker     Subtype = "temporary_worker"
)

// Subtypes lists every subtype in declaration order.
var Subtypes = []Subtype{
	SubtypeLegal, SubtypeIllegal, SubtypeRefugee, SubtypeEconomic,
	SubtypeFamilyReunification, SubtypeStudent, SubtypeTemporaryWorker,
}

// Valid returns true if the subtype is known.
func (s Subtype) Valid() bool {
	return slices.Contains(Subtypes, s)
}

// LegalStatus is the documentation state of the cohort.
type LegalStatus string

const (
	LegalDocumented   LegalStatus = "documented"
	LegalUndocumented LegalStatus = "undocumented"
	LegalRefugee      LegalStatus = "refugee"
	LegalAsylumSeeker LegalStatus = "asylum_seeker"
)

// Valid returns true if the legal status is known.
func (l LegalStatus) Valid() bool {
	switch l {
	case LegalDocumented, LegalUndocumented, LegalRefugee, LegalAsylumSeeker:
		return true
	default:
		return false
	}
}

// Demographics describes the composition of a cohort. Distributions are
// shares in [0, 1] keyed by bucket name.
type Demographics struct {
	AgeDistribution    map[string]float64 `json:"age_distribution" yaml:"age_distribution"`
	GenderDistribution map[string]float64 `json:"gender_distribution" yaml:"gender_distribution"`
	EducationLevels    map[string]float64 `json:"education_levels" yaml:"education_levels"`
	SkillLevels        map[string]float64 `json:"skill_levels" yaml:"skill_levels"`
	Languages          []string           `json:"languages" yaml:"languages"`
	CulturalBackground string             `json:"cultural_background" yaml:"cultural_background"`
}

// EconomicProfile describes the cohort's economic position on departure.
type EconomicProfile struct {
	AverageIncome      float64  `json:"average_income" yaml:"average_income"`
	Savings            float64  `json:"savings" yaml:"savings"`
	JobSkills          []string `json:"job_skills" yaml:"job_skills"`
	EmploymentRate     float64  `json:"employment_rate" yaml:"employment_rate"`
	RemittanceCapacity float64  `json:"remittance_capacity" yaml:"remittance_capacity"`
}

// PushFactors are origin-side pressures, each 0–100.
type PushFactors struct {
	Economic      float64 `json:"economic" yaml:"economic"`
	Political     float64 `json:"political" yaml:"political"`
	Environmental float64 `json:"environmental" yaml:"environmental"`
	Social        float64 `json:"social" yaml:"social"`
	Conflict      float64 `json:"conflict" yaml:"conflict"`
}

// PullFactors are destination-side attractions, each 0–100.
type PullFactors struct {
	Economic      float64 `json:"economic" yaml:"economic"`
	Social        float64 `json:"social" yaml:"social"`
	Political     float64 `json:"political" yaml:"political"`
	Environmental float64 `json:"environmental" yaml:"environmental"`
	Educational   float64 `json:"educational" yaml:"educational"`
}

// IntegrationFactors seed the paired integration outcome, each 0–100.
type IntegrationFactors struct {
	LanguageProficiency float64 `json:"language_proficiency" yaml:"language_proficiency"`
	CulturalSimilarity  float64 `json:"cultural_similarity" yaml:"cultural_similarity"`
	SocialNetworks      float64 `json:"social_networks" yaml:"social_networks"`
	AdaptabilityScore   float64 `json:"adaptability_score" yaml:"adaptability_score"`
	ResourceAccess      float64 `json:"resource_access" yaml:"resource_access"`
}

// Clamped returns the factors bounded to 0–100.
func (p PushFactors) Clamped() PushFactors {
	return PushFactors{
		Economic:      Clamp100(p.Economic),
		Political:     Clamp100(p.Political),
		Environmental: Clamp100(p.Environmental),
		Social:        Clamp100(p.Social),
		Conflict:      Clamp100(p.Conflict),
	}
}

// Clamped returns the factors bounded to 0–100.
func (p PullFactors) Clamped() PullFactors {
	return PullFactors{
		Economic:      Clamp100(p.Economic),
		Social:        Clamp100(p.Social),
		Political:     Clamp100(p.Political),
		Environmental: Clamp100(p.Environmental),
		Educational:   Clamp100(p.Educational),
	}
}

// Clamped returns the factors bounded to 0–100.
func (i IntegrationFactors) Clamped() IntegrationFactors {
	return IntegrationFactors{
		LanguageProficiency: Clamp100(i.LanguageProficiency),
		CulturalSimilarity:  Clamp100(i.CulturalSimilarity),
		SocialNetworks:      Clamp100(i.SocialNetworks),
		AdaptabilityScore:   Clamp100(i.AdaptabilityScore),
		ResourceAccess:      Clamp100(i.ResourceAccess),
	}
}

// Flow is a cohort of migrants sharing one movement profile.
type Flow struct {
	ID                string  `json:"id"`
	Type              Type    `json:"type"`
	Subtype           Subtype `json:"subtype"`
	OriginCityID      string  `json:"origin_city_id,omitempty"`
	OriginCountry     string  `json:"origin_country,omitempty"`
	DestinationCityID string  `json:"destination_city_id"`

	PopulationSize int        `json:"population_size"`
	StartDate      time.Time  `json:"start_date"`
	Duration       int        `json:"duration,omitempty"` // months, 0 = open-ended
	EndDate        *time.Time `json:"end_date,omitempty"`

	Demographics    Demographics    `json:"demographics"`
	EconomicProfile EconomicProfile `json:"economic_profile"`
	PushFactors     PushFactors     `json:"push_factors"`
	PullFactors     PullFactors     `json:"pull_factors"`

	LegalStatus        LegalStatus        `json:"legal_status"`
	VisaType           string             `json:"visa_type,omitempty"` // empty when undocumented
	DocumentationLevel float64            `json:"documentation_level"`
	IntegrationFactors IntegrationFactors `json:"integration_factors"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      Status    `json:"status"`
}

// OriginLabel names where the flow came from for display.
func (f *Flow) OriginLabel() string {
	if f.OriginCountry != "" {
		return f.OriginCountry
	}
	if f.OriginCityID != "" {
		return f.OriginCityID
	}
	return "Unknown"
}

// Touches reports whether the flow starts or ends in city.
func (f *Flow) Touches(city string) bool {
	return f.DestinationCityID == city || f.OriginCityID == city
}

// SetPopulation stores n clamped to [0, MaxPopulation]. NaN stores 0.
func (f *Flow) SetPopulation(n float64) {
	switch {
	case math.IsNaN(n) || n <= 0:
		f.PopulationSize = 0
	case n >= MaxPopulation:
		f.PopulationSize = MaxPopulation
	default:
		f.PopulationSize = int(n)
	}
}

// Clone returns a deep copy.
func (f *Flow) Clone() Flow {
	c := *f
	c.Demographics.AgeDistribution = maps.Clone(f.Demographics.AgeDistribution)
	c.Demographics.GenderDistribution = maps.Clone(f.Demographics.GenderDistribution)
	c.Demographics.EducationLevels = maps.Clone(f.Demographics.EducationLevels)
	c.Demographics.SkillLevels = maps.Clone(f.Demographics.SkillLevels)
	c.Demographics.Languages = slices.Clone(f.Demographics.Languages)
	c.EconomicProfile.JobSkills = slices.Clone(f.EconomicProfile.JobSkills)
	if f.EndDate != nil {
		end := *f.EndDate
		c.EndDate = &end
	}
	return c
}

// Clamp100 bounds v to the 0–100 score range.
func Clamp100(v float64) float64 {
	return Clamp(v, 0, 100)
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Finite reports whether every factor is a finite number.
func (p PushFactors) Finite() bool {
	return Finite(p.Economic, p.Political, p.Environmental, p.Social, p.Conflict)
}

// Finite reports whether every factor is a finite number.
func (p PullFactors) Finite() bool {
	return Finite(p.Economic, p.Social, p.Political, p.Environmental, p.Educational)
}

// Finite reports whether every factor is a finite number.
func (i IntegrationFactors) Finite() bool {
	return Finite(i.LanguageProficiency, i.CulturalSimilarity, i.SocialNetworks,
		i.AdaptabilityScore, i.ResourceAccess)
}

// Finite reports whether every figure is a finite number.
func (e EconomicProfile) Finite() bool {
	return Finite(e.AverageIncome, e.Savings, e.EmploymentRate, e.RemittanceCapacity)
}

// Finite reports whether every distribution share is a finite number.
func (d Demographics) Finite() bool {
	for _, dist := range []map[string]float64{
		d.AgeDistribution, d.GenderDistribution, d.EducationLevels, d.SkillLevels,
	} {
		for _, v := range dist {
			if !Finite(v) {
				return false
			}
		}
	}
	return true
}
