package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/migration-sim/internal/engine"
	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/integration"
)

// reportEvents is how many recent events a report shows.
const reportEvents = 5

// cityReport is one destination's line in a report.
type cityReport struct {
	City       string `json:"city"`
	Population int    `json:"population"`
	Flows      int    `json:"flows"`
}

// report is the end-of-run summary.
type report struct {
	Scenario string         `json:"scenario"`
	Time     string         `json:"time"`
	Stats    engine.Stats   `json:"stats"`
	Cities   []cityReport   `json:"cities"`
	Recent   []events.Event `json:"recent_events"`
}

func newReport(scenarioName string, sim *engine.Simulation) report {
	st := sim.Stats()
	r := report{
		Scenario: scenarioName,
		Time:     engine.SimTime(sim.Now()),
		Stats:    st,
		Recent:   sim.RecentEvents(reportEvents),
	}
	for city, pop := range st.Destinations {
		r.Cities = append(r.Cities, cityReport{City: city, Population: pop})
	}
	for _, f := range sim.Flows() {
		for i := range r.Cities {
			if r.Cities[i].City == f.DestinationCityID {
				r.Cities[i].Flows++
			}
		}
	}
	slices.SortFunc(r.Cities, func(a, b cityReport) int {
		if a.Population != b.Population {
			return b.Population - a.Population
		}
		return strings.Compare(a.City, b.City)
	})
	return r
}

func writeReport(w io.Writer, r report, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	st := r.Stats
	fmt.Fprintf(w, "Migration simulation: %s\n", r.Scenario)
	fmt.Fprintf(w, "  Time:         %s (tick %d)\n", r.Time, st.Tick)
	fmt.Fprintf(w, "  Flows:        %d (%d active), %s people\n",
		st.Flows, st.ActiveFlows, humanize.Comma(int64(st.TotalPopulation)))
	fmt.Fprintf(w, "  Policies:     %d (%d active)\n", st.Policies, st.ActivePolicies)
	fmt.Fprintf(w, "  Integration:  average %.1f across %d cohorts\n", st.AvgIntegration, st.Outcomes)

	stages := make([]string, 0, len(integration.Stages))
	for _, s := range integration.Stages {
		if n := st.Stages[s]; n > 0 {
			stages = append(stages, fmt.Sprintf("%s %d", s, n))
		}
	}
	if len(stages) > 0 {
		fmt.Fprintf(w, "  Stages:       %s\n", strings.Join(stages, ", "))
	}

	if len(r.Cities) > 0 {
		fmt.Fprintln(w, "  Destinations:")
		for _, c := range r.Cities {
			fmt.Fprintf(w, "    %-16s %12s  (%d %s)\n",
				c.City, humanize.Comma(int64(c.Population)), c.Flows, plural(c.Flows, "flow"))
		}
	}

	fmt.Fprintf(w, "  Events:       %s logged\n", humanize.Comma(int64(st.Events)))
	for _, e := range r.Recent {
		fmt.Fprintf(w, "    [%s] %-8s %s\n", engine.SimTime(e.Timestamp), e.Severity, e.Description)
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// ordinalYear renders a year-end tick as "3rd year" for log lines.
func ordinalYear(tick uint64) string {
	return humanize.Ordinal(int(tick/engine.TicksPerYear)) + " year"
}
