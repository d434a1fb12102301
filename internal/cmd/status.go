package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ltreme/biasbench/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show a benchmark run's persisted status and result count",
	Long: `status reports the run's stored status and how many (persona, case,
scale_order) triples have been persisted so far. It reads straight from the
store, so it works whether or not a "benchctl serve" worker is currently
driving the run — unlike the live in-memory progress registry, which only
exists inside the process running that worker.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	run, err := db.GetBenchmarkRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %d: %w", runID, err)
	}

	done, err := db.CountDistinctCompleted(ctx, runID)
	if err != nil {
		return fmt.Errorf("count completed: %w", err)
	}
	personas, err := db.CountDatasetPersonas(ctx, run.DatasetID)
	if err != nil {
		return fmt.Errorf("count dataset personas: %w", err)
	}
	traits, err := db.ActiveTraitCount(ctx)
	if err != nil {
		return fmt.Errorf("count active traits: %w", err)
	}

	base := personas * traits
	dualFraction := run.DualFraction
	if run.ScaleMode == store.ScaleModeIn {
		dualFraction = 0
	}
	total := base + int(float64(base)*dualFraction+0.5)
	pct := 0.0
	if total > 0 {
		pct = 100.0 * float64(done) / float64(total)
	}

	fmt.Printf("run %d: status=%s dataset=%d model=%q\n", run.ID, run.Status, run.DatasetID, run.ModelID)
	fmt.Printf("  progress: %d/%d (%.1f%%)\n", done, total, pct)
	if run.Error != nil {
		fmt.Printf("  error: %s\n", *run.Error)
	}
	return nil
}
