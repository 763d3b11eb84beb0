package engine

import (
	"fmt"

	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/integration"
)

// updateIntegration progresses every outcome by one tick and logs a
// milestone whenever a cohort reaches a new stage.
func (s *Simulation) updateIntegration() {
	for _, o := range s.store.Outcomes() {
		before := integration.Progress(o, s.cfg)
		o.LastAssessment = s.now

		if o.Stage == before {
			continue
		}
		s.logEvent(events.Event{
			Type:           events.TypeIntegrationMilestone,
			Description:    fmt.Sprintf("Cohort %s advanced from %s to %s", o.FlowID, before, o.Stage),
			Severity:       events.SeverityLow,
			AffectedCities: []string{o.CityID},
			AffectedFlows:  []string{o.FlowID},
		})
		s.logger.Debug("integration milestone", "outcome", o.ID, "from", before, "to", o.Stage, "months", o.TimeInDestination)
	}
}
