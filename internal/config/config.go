// Package config holds the migration engine's tuning knobs.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TimeStep is the simulated span one Advance call covers.
type TimeStep string

const (
	StepDay     TimeStep = "day"
	StepWeek    TimeStep = "week"
	StepMonth   TimeStep = "month"
	StepQuarter TimeStep = "quarter"
	StepYear    TimeStep = "year"
)

// Next returns t moved forward by n steps. Month-based steps are computed
// from t directly so repeated calls do not drift.
func (s TimeStep) Next(t time.Time, n int) time.Time {
	switch s {
	case StepDay:
		return t.AddDate(0, 0, n)
	case StepWeek:
		return t.AddDate(0, 0, 7*n)
	case StepQuarter:
		return AddMonths(t, 3*n)
	case StepYear:
		return AddMonths(t, 12*n)
	default:
		return AddMonths(t, n)
	}
}

// AddMonths moves t by n calendar months, keeping the day of month but
// clamping it to the last day of the target month. Jan 31 plus one month is
// Feb 28 (or 29), not Mar 3.
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, n, 0)
	day := min(t.Day(), DaysIn(first.Year(), first.Month()))
	return first.AddDate(0, 0, day-1)
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Config contains every engine setting. Knobs marked advisory are carried
// for analytics consumers and do not drive the core update rules.
type Config struct {
	// Flow dynamics
	BaseFlowVolatility    float64 `json:"base_flow_volatility" yaml:"base_flow_volatility"`
	EconomicSensitivity   float64 `json:"economic_sensitivity" yaml:"economic_sensitivity"`
	PolicySensitivity     float64 `json:"policy_sensitivity" yaml:"policy_sensitivity"`
	NetworkEffectStrength float64 `json:"network_effect_strength" yaml:"network_effect_strength"`

	// Integration
	IntegrationTimeframe        int     `json:"integration_timeframe" yaml:"integration_timeframe"`                 // months, advisory
	IntegrationVariability      float64 `json:"integration_variability" yaml:"integration_variability"`             // advisory
	SupportServiceEffectiveness float64 `json:"support_service_effectiveness" yaml:"support_service_effectiveness"` // advisory
	DiscriminationImpact        float64 `json:"discrimination_impact" yaml:"discrimination_impact"`
	CulturalAdaptationRate      float64 `json:"cultural_adaptation_rate" yaml:"cultural_adaptation_rate"`

	// Economy
	LaborMarketAbsorption float64 `json:"labor_market_absorption" yaml:"labor_market_absorption"` // advisory
	SkillPremium          float64 `json:"skill_premium" yaml:"skill_premium"`
	EntrepreneurshipRate  float64 `json:"entrepreneurship_rate" yaml:"entrepreneurship_rate"`
	RemittanceRate        float64 `json:"remittance_rate" yaml:"remittance_rate"` // advisory

	// Social
	SocialCohesionSensitivity float64 `json:"social_cohesion_sensitivity" yaml:"social_cohesion_sensitivity"` // advisory
	InterculturalContactRate  float64 `json:"intercultural_contact_rate" yaml:"intercultural_contact_rate"`
	SegregationTendency       float64 `json:"segregation_tendency" yaml:"segregation_tendency"` // advisory

	// Policy
	PolicyImplementationLag  int     `json:"policy_implementation_lag" yaml:"policy_implementation_lag"` // months
	EnforcementEffectiveness float64 `json:"enforcement_effectiveness" yaml:"enforcement_effectiveness"`
	PublicOpinionInfluence   float64 `json:"public_opinion_influence" yaml:"public_opinion_influence"` // advisory

	// Simulation
	TimeStep             TimeStep  `json:"time_step" yaml:"time_step"`
	RandomEventFrequency float64   `json:"random_event_frequency" yaml:"random_event_frequency"`
	CapacityConstraints  bool      `json:"capacity_constraints" yaml:"capacity_constraints"`
	Seed                 int64     `json:"seed" yaml:"seed"` // 0 = non-reproducible
	StartTime            time.Time `json:"start_time" yaml:"start_time"`
	SeedDefaultPolicies  bool      `json:"seed_default_policies" yaml:"seed_default_policies"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DefaultStartTime is the simulation epoch used when none is configured.
var DefaultStartTime = time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

// Default returns a Config with the engine's baseline calibration.
func Default() *Config {
	return &Config{
		BaseFlowVolatility:    0.15,
		EconomicSensitivity:   0.8,
		PolicySensitivity:     0.6,
		NetworkEffectStrength: 0.4,

		IntegrationTimeframe:        60, // 5 years average
		IntegrationVariability:      0.3,
		SupportServiceEffectiveness: 0.7,
		DiscriminationImpact:        0.4,
		CulturalAdaptationRate:      0.02, // 2% per month

		LaborMarketAbsorption: 0.8,
		SkillPremium:          1.5,
		EntrepreneurshipRate:  0.15,
		RemittanceRate:        0.2,

		SocialCohesionSensitivity: 0.3,
		InterculturalContactRate:  0.05,
		SegregationTendency:       0.2,

		PolicyImplementationLag:  6,
		EnforcementEffectiveness: 0.75,
		PublicOpinionInfluence:   0.4,

		TimeStep:             StepMonth,
		RandomEventFrequency: 0.03,
		CapacityConstraints:  true,
		Seed:                 42,
		StartTime:            DefaultStartTime,
		SeedDefaultPolicies:  true,

		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults,
// then applies environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Load returns the defaults, or the file at path when path is non-empty,
// with environment overrides applied.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	return cfg, nil
}

type knob struct {
	name  string
	value float64
}

// Validate checks that the configuration is usable. Knobs are checked in
// declaration order so the first failure is stable.
func (c *Config) Validate() error {
	probabilities := []knob{
		{"random_event_frequency", c.RandomEventFrequency},
		{"enforcement_effectiveness", c.EnforcementEffectiveness},
		{"discrimination_impact", c.DiscriminationImpact},
	}
	for _, k := range probabilities {
		if !finite(k.value) || k.value < 0 || k.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", k.name, k.value)
		}
	}

	nonNegative := []knob{
		{"base_flow_volatility", c.BaseFlowVolatility},
		{"economic_sensitivity", c.EconomicSensitivity},
		{"policy_sensitivity", c.PolicySensitivity},
		{"network_effect_strength", c.NetworkEffectStrength},
		{"cultural_adaptation_rate", c.CulturalAdaptationRate},
		{"skill_premium", c.SkillPremium},
		{"entrepreneurship_rate", c.EntrepreneurshipRate},
		{"intercultural_contact_rate", c.InterculturalContactRate},
	}
	for _, k := range nonNegative {
		if !finite(k.value) || k.value < 0 {
			return fmt.Errorf("%s must be a non-negative finite number, got %f", k.name, k.value)
		}
	}

	advisory := []knob{
		{"integration_variability", c.IntegrationVariability},
		{"support_service_effectiveness", c.SupportServiceEffectiveness},
		{"labor_market_absorption", c.LaborMarketAbsorption},
		{"remittance_rate", c.RemittanceRate},
		{"social_cohesion_sensitivity", c.SocialCohesionSensitivity},
		{"segregation_tendency", c.SegregationTendency},
		{"public_opinion_influence", c.PublicOpinionInfluence},
	}
	for _, k := range advisory {
		if !finite(k.value) {
			return fmt.Errorf("%s must be a finite number, got %f", k.name, k.value)
		}
	}

	if c.PolicyImplementationLag < 0 {
		return fmt.Errorf("policy_implementation_lag must be non-negative, got %d", c.PolicyImplementationLag)
	}

	switch c.TimeStep {
	case StepDay, StepWeek, StepMonth, StepQuarter, StepYear:
	default:
		return fmt.Errorf("invalid time_step: %s (valid: day, week, month, quarter, year)", c.TimeStep)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.LogLevel != "" && !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error, or empty for default)", c.LogLevel)
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("MIGRASIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = seed
		}
	}
	if v := os.Getenv("MIGRASIM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MIGRASIM_RANDOM_EVENT_FREQUENCY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RandomEventFrequency = f
		}
	}
	if v := os.Getenv("MIGRASIM_CAPACITY_CONSTRAINTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.CapacityConstraints = b
		}
	}
}
