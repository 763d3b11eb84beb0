package engine

import (
	"fmt"

	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/flows"
)

// NetworkScale is the destination population at which the network effect
// equals its configured strength.
const NetworkScale = 10000.0

// CapacityLimit is the per-destination population above which a capacity
// breach is reported.
const CapacityLimit = 100_000

// networkEffect is the attraction bonus of an existing diaspora. It
// saturates at 1.
func networkEffect(destinationTotal int, strength float64) float64 {
	return min(1, float64(destinationTotal)/NetworkScale*strength)
}

// destinationTotals sums population per destination. The order slice lists
// destinations as first seen in the store.
func (s *Simulation) destinationTotals() (map[string]int, []string) {
	totals := make(map[string]int)
	var order []string
	for _, f := range s.store.Flows() {
		if _, ok := totals[f.DestinationCityID]; !ok {
			order = append(order, f.DestinationCityID)
		}
		totals[f.DestinationCityID] += f.PopulationSize
	}
	return totals, order
}

// applyNetworkEffects raises each flow's social pull by its destination's
// network effect.
func (s *Simulation) applyNetworkEffects() {
	totals, _ := s.destinationTotals()
	for _, f := range s.store.Flows() {
		effect := networkEffect(totals[f.DestinationCityID], s.cfg.NetworkEffectStrength)
		f.PullFactors.Social = flows.Clamp100(f.PullFactors.Social + effect*10)
	}
}

// checkCapacityConstraints reports destinations above CapacityLimit. It
// does not throttle population.
func (s *Simulation) checkCapacityConstraints() {
	if !s.cfg.CapacityConstraints {
		return
	}
	totals, order := s.destinationTotals()
	for _, city := range order {
		total := totals[city]
		if total <= CapacityLimit {
			continue
		}
		s.logEvent(events.Event{
			Type:           events.TypeCapacityLimit,
			Description:    fmt.Sprintf("Migration capacity exceeded in %s", city),
			Severity:       events.SeverityCritical,
			AffectedCities: []string{city},
			Impact: events.Impact{
				Population: float64(total - CapacityLimit),
				Economic:   -500_000,
				Social:     -15,
				Policy:     -20,
			},
		})
		s.logger.Warn("capacity exceeded", "city", city, "population", total, "limit", CapacityLimit)
	}
}
