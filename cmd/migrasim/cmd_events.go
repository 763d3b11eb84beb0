package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/migration-sim/internal/engine"
	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/persistence"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent events saved in a database",
		Long: `List the most recent simulation events saved in a database, newest first.

Examples:
  migrasim events --db data/sim.db                    # Last 20 events
  migrasim events --db data/sim.db --severity critical
  migrasim events --db data/sim.db --limit 100 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			limit, _ := cmd.Flags().GetInt("limit")
			severity, _ := cmd.Flags().GetString("severity")
			jsonOut, _ := cmd.Flags().GetBool("json")

			db, err := persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			var list []events.Event
			if severity != "" {
				list, err = db.EventsAtSeverity(events.Severity(strings.ToLower(severity)), limit)
			} else {
				list, err = db.RecentEvents(limit)
			}
			if err != nil {
				return fmt.Errorf("failed to read events: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No events.")
				return nil
			}
			for _, e := range list {
				fmt.Fprintf(out, "%6d  %-14s %-8s %-22s %s\n",
					e.Tick, engine.SimTime(e.Timestamp), e.Severity, e.Type, e.Description)
			}
			return nil
		},
	}

	cmd.Flags().String("db", "data/migrasim.db", "SQLite database to read")
	cmd.Flags().Int("limit", 20, "Maximum number of events")
	cmd.Flags().String("severity", "", "Only events of this severity (low, medium, high, critical)")
	return cmd
}
