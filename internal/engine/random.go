package engine

import (
	"math"

	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/flows"
)

// randomEventTypes are the event kinds a random event can take.
var randomEventTypes = []events.Type{
	events.TypeCrisisResponse,
	events.TypeCapacityLimit,
	events.TypeFlowChange,
}

var randomEventDescriptions = map[events.Type]string{
	events.TypeCrisisResponse: "Emergency migration response activated due to regional crisis",
	events.TypeCapacityLimit:  "Migration capacity limits reached, processing delays expected",
	events.TypeFlowChange:     "Significant change in migration patterns detected",
}

// processRandomEvents fires at most one narrative event per tick. Its
// impact figures are never fed back into flow state.
func (s *Simulation) processRandomEvents() {
	if s.rng.Float64() >= s.cfg.RandomEventFrequency {
		return
	}
	kind := randomEventTypes[s.rng.IntN(len(randomEventTypes))]

	cities := s.activeDestinations()
	if len(cities) == 0 {
		return
	}
	city := cities[s.rng.IntN(len(cities))]

	severity := events.SeverityMedium
	if s.rng.Float64() > 0.7 {
		severity = events.SeverityHigh
	}

	s.logEvent(events.Event{
		Type:           kind,
		Description:    randomEventDescriptions[kind],
		Severity:       severity,
		AffectedCities: []string{city},
		Impact: events.Impact{
			Population: math.Floor(s.rng.Float64() * 1000),
			Economic:   (s.rng.Float64() - 0.5) * 1_000_000,
			Social:     (s.rng.Float64() - 0.5) * 20,
			Policy:     (s.rng.Float64() - 0.5) * 10,
		},
	})
	s.logger.Debug("random event", "type", kind, "city", city, "severity", severity)
}

// activeDestinations lists the destinations of active flows, first seen
// first.
func (s *Simulation) activeDestinations() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range s.store.Flows() {
		if f.Status != flows.StatusActive || seen[f.DestinationCityID] {
			continue
		}
		seen[f.DestinationCityID] = true
		out = append(out, f.DestinationCityID)
	}
	return out
}
