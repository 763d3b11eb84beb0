// Command migrasim runs the migration flow and integration simulation.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/migration-sim/internal/config"
	"github.com/talgya/migration-sim/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "migrasim",
		Short: "Migration flow and integration simulator",
		Long: `migrasim simulates migration flows between cities, the policies that
shape them, and the integration of each arriving cohort over time.

State can be saved to a SQLite database and resumed on the next run.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newStatusCmd(),
		newEventsCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "migrasim version %s\n", version)
			}
		},
	}
}

// loadConfig reads --config and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger on stderr and installs it as the
// slog default.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	var w io.Writer = cmd.ErrOrStderr()
	jsonOut, _ := cmd.Flags().GetBool("json")

	var logger *slog.Logger
	if jsonOut {
		logger = logging.NewJSONLogger(cfg.LogLevel, w)
	} else {
		logger = logging.NewLogger(cfg.LogLevel, w)
	}
	slog.SetDefault(logger)
	return logger
}
