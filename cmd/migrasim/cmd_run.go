package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/migration-sim/internal/api"
	"github.com/talgya/migration-sim/internal/config"
	"github.com/talgya/migration-sim/internal/engine"
	"github.com/talgya/migration-sim/internal/logging"
	"github.com/talgya/migration-sim/internal/persistence"
	"github.com/talgya/migration-sim/internal/scenario"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation",
		Long: `Run the simulation for a number of ticks.

With --db the state is saved every simulated year and on exit, and a later
run against the same database resumes where the last one stopped.

Examples:
  migrasim run                                  # Baseline scenario, 120 ticks
  migrasim run --ticks 240 --seed 7             # Longer, different seed
  migrasim run --scenario crisis.yaml --db data/sim.db
  migrasim run --db data/sim.db --interval 500ms --api-port 8080`,
		RunE: runSimulation,
	}

	cmd.Flags().String("scenario", "", "Scenario YAML file (default: built-in baseline)")
	cmd.Flags().Uint64("ticks", 0, "Ticks to run (default: the scenario's suggested length)")
	cmd.Flags().Int64("seed", 0, "Random seed (overrides config; 0 keeps the configured seed)")
	cmd.Flags().String("db", "", "SQLite database for saving and resuming state")
	cmd.Flags().Bool("fresh", false, "Ignore any saved state in --db and start over")
	cmd.Flags().Duration("interval", 0, "Wall-clock pause between ticks")
	cmd.Flags().String("events-out", "", "Append events to this JSONL file")
	cmd.Flags().Int("api-port", 0, "Serve the HTTP API on this port while running (0 = off)")

	return cmd
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		cfg.Seed = seed
	}
	logger := newLogger(cmd, cfg)

	scenarioPath, _ := cmd.Flags().GetString("scenario")
	scen := scenario.Baseline()
	if scenarioPath != "" {
		if scen, err = scenario.Load(scenarioPath); err != nil {
			return err
		}
	}

	dbPath, _ := cmd.Flags().GetString("db")
	fresh, _ := cmd.Flags().GetBool("fresh")

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		if db, err = persistence.Open(dbPath); err != nil {
			return err
		}
		defer db.Close()
		logger.Info("database opened", "path", dbPath)
	}

	// ── Load or Build Simulation ─────────────────────────────────────
	sim, resumed, err := loadOrCreate(cfg, db, fresh, scen, logger)
	if err != nil {
		return err
	}
	if db != nil && !resumed {
		if err := db.SaveSnapshot(sim.Snapshot()); err != nil {
			logger.Error("initial save failed", "error", err)
		}
		if err := db.SaveMeta("scenario", scen.Name); err != nil {
			logger.Error("saving scenario name failed", "error", err)
		}
	}

	eventsOut, _ := cmd.Flags().GetString("events-out")
	sink, err := logging.OpenEventSink(eventsOut)
	if err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	defer sink.Close()

	// ── Engine ────────────────────────────────────────────────────────
	ticks, _ := cmd.Flags().GetUint64("ticks")
	if ticks == 0 {
		ticks = scen.Ticks
	}
	if ticks == 0 {
		ticks = 10 * engine.TicksPerYear
	}

	eng := engine.NewEngine(sim.Tick())
	eng.MaxTicks = sim.Tick() + ticks
	eng.Interval, _ = cmd.Flags().GetDuration("interval")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng.OnTick = func(tick uint64) {
		sim.Advance()
		for _, change := range scen.Due(tick) {
			if _, err := scenario.Fire(ctx, sim, change); err != nil {
				logger.Warn("scheduled policy change failed", "tick", tick, "policy", change.Policy, "event", change.Event, "error", err)
			}
		}
		// Flush every tick so the ring log cannot evict unwritten events.
		if _, err := sink.Write(sim.Events()); err != nil {
			logger.Error("writing events failed", "error", err)
		}
	}
	eng.OnYear = func(tick uint64) {
		st := sim.Stats()
		logger.Info("year complete",
			"year", ordinalYear(tick),
			"tick", tick,
			"time", engine.SimTime(sim.Now()),
			"population", st.TotalPopulation,
			"active_flows", st.ActiveFlows,
			"avg_integration", fmt.Sprintf("%.1f", st.AvgIntegration),
		)
		if db != nil {
			if err := db.SaveSnapshot(sim.Snapshot()); err != nil {
				logger.Error("yearly save failed", "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if port, _ := cmd.Flags().GetInt("api-port"); port > 0 {
		adminKey := os.Getenv("MIGRASIM_ADMIN_KEY")
		if adminKey == "" {
			logger.Warn("MIGRASIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		srv := (&api.Server{Sim: sim, DB: db, Port: port, AdminKey: adminKey}).Start()
		defer api.Shutdown(srv, 5*time.Second)
	}

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		logger.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	if resumed {
		logger.Info("resuming", "tick", sim.Tick(), "time", engine.SimTime(sim.Now()))
	}
	started := time.Now()
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// Final save on shutdown.
	if _, err := sink.Write(sim.Events()); err != nil {
		logger.Error("writing events failed", "error", err)
	}
	if db != nil {
		if err := db.SaveSnapshot(sim.Snapshot()); err != nil {
			return fmt.Errorf("final save failed: %w", err)
		}
	}
	logger.Debug("run finished", "elapsed", time.Since(started))

	jsonOut, _ := cmd.Flags().GetBool("json")
	return writeReport(cmd.OutOrStdout(), newReport(scen.Name, sim), jsonOut)
}

// loadOrCreate restores the saved simulation from db, or builds a new one
// from scen. It reports whether the simulation was resumed.
func loadOrCreate(cfg *config.Config, db *persistence.DB, fresh bool, scen *scenario.Scenario, logger *slog.Logger) (*engine.Simulation, bool, error) {
	if db != nil && !fresh {
		snap, err := db.LoadSnapshot()
		switch {
		case err == nil:
			sim, err := engine.Restore(cfg, snap, engine.WithLogger(logger))
			if err != nil {
				return nil, false, fmt.Errorf("failed to restore saved state: %w", err)
			}
			return sim, true, nil
		case !errors.Is(err, persistence.ErrNoSnapshot):
			return nil, false, fmt.Errorf("failed to load saved state: %w", err)
		}
		logger.Info("no saved state found, starting new simulation")
	}

	sim, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		return nil, false, err
	}
	if err := scen.Apply(sim); err != nil {
		return nil, false, err
	}
	logger.Info("scenario applied", "scenario", scen.Name, "flows", len(scen.Flows), "policies", len(scen.Policies))
	return sim, false, nil
}
