package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ltreme/biasbench/internal/benchrun"
	"github.com/ltreme/biasbench/internal/config"
	"github.com/ltreme/biasbench/internal/promptlog"
	"github.com/ltreme/biasbench/internal/queue"
	"github.com/ltreme/biasbench/internal/store"
)

// taskConfig is the JSON stored in a benchmark task's Config column — just
// the benchmark_runs row it drives. Run-level options (batch size, scale
// mode, …) already live on that row, so the queue task only needs to point
// at it.
type taskConfig struct {
	RunID int64 `json:"run_id"`
}

// benchmarkHandler adapts a *benchrun.Runner into the queue.Handler shape
// for store.TaskTypeBenchmark. It belongs here, not in internal/queue,
// because it's the one place that legitimately depends on both benchrun and
// the process-wide gateway/prompt-log configuration — internal/queue itself
// stays free of any dependency on benchrun or pipeline by design.
func benchmarkHandler(s *store.Store, runner *benchrun.Runner, gwCfg config.GatewayConfig, backend string, sink *promptlog.Sink, concurrency int) queue.Handler {
	return func(ctx context.Context, task store.TaskQueueRow) (*int64, error) {
		var tc taskConfig
		if err := json.Unmarshal([]byte(task.Config), &tc); err != nil {
			return nil, fmt.Errorf("parse benchmark task config: %w", err)
		}

		run, err := s.GetBenchmarkRun(ctx, tc.RunID)
		if err != nil {
			return nil, fmt.Errorf("load benchmark run %d: %w", tc.RunID, err)
		}

		gw, err := resolveGateway(ctx, gwCfg, backend, run.ModelID)
		if err != nil {
			return nil, fmt.Errorf("resolve gateway for run %d: %w", tc.RunID, err)
		}

		if _, err := runner.Execute(ctx, tc.RunID, benchrun.Options{
			Gateway:     gw,
			Concurrency: concurrency,
			PromptLog:   sink,
		}); err != nil {
			return nil, err
		}
		runID := tc.RunID
		return &runID, nil
	}
}
