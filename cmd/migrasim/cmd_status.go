package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/migration-sim/internal/engine"
	"github.com/talgya/migration-sim/internal/persistence"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the state saved in a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			db, err := persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			snap, err := db.LoadSnapshot()
			if errors.Is(err, persistence.ErrNoSnapshot) {
				return fmt.Errorf("%s holds no saved simulation; run 'migrasim run --db %s' first", dbPath, dbPath)
			}
			if err != nil {
				return err
			}
			sim, err := engine.Restore(cfg, snap, engine.WithLogger(logger))
			if err != nil {
				return err
			}

			name, err := db.GetMeta("scenario")
			if err != nil {
				name = "(unknown)"
			}
			return writeReport(cmd.OutOrStdout(), newReport(name, sim), jsonOut)
		},
	}

	cmd.Flags().String("db", "data/migrasim.db", "SQLite database to read")
	return cmd
}
