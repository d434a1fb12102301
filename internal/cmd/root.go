package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ltreme/biasbench/internal/config"
	"github.com/ltreme/biasbench/internal/store"
)

var (
	cfgFile string
	verbose bool

	cfg *config.Config
	db  *store.Store
)

// rootCmd is the benchctl entry point.
var rootCmd = &cobra.Command{
	Use:   "benchctl",
	Short: "Operator CLI for the persona bias benchmark harness",
	Long: `benchctl submits benchmark tasks to the task queue, drives the queue
worker loop, and reports on benchmark run progress.

Example:
  benchctl submit --dataset 1 --model gpt-4o-mini
  benchctl serve
  benchctl queue list`,
	Version:           "0.1.0",
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

// Execute runs the command tree; it is the sole export cmd/benchctl's
// main.go calls.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a .env file (default: ./.env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug) logging")
}

// setup loads configuration, initializes the logger, and opens the store —
// shared state every subcommand needs, built once per invocation.
func setup(cmd *cobra.Command, args []string) error {
	var loaded *config.Config
	var err error
	if cfgFile != "" {
		loaded, err = config.LoadFrom(cfgFile)
	} else {
		loaded, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = loaded

	initLogger(cfg.Logging.Level)

	s, err := store.Open(cmd.Context(), cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store at %s: %w", cfg.Database.Path, err)
	}
	db = s
	return nil
}

func teardown() error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// initLogger sets up the global structured logger based on verbosity and
// the configured level — mirroring the teacher's slog.NewTextHandler setup.
func initLogger(configuredLevel string) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	} else if l, err := parseLevel(configuredLevel); err == nil {
		level = l
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}
