package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ltreme/biasbench/internal/benchrun"
	"github.com/ltreme/biasbench/internal/progress"
	"github.com/ltreme/biasbench/internal/promptlog"
	"github.com/ltreme/biasbench/internal/queue"
	"github.com/ltreme/biasbench/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task-queue worker loop and expose /metrics",
	Long: `serve recovers orphaned tasks, then drives the task queue in the
foreground: one task in flight at a time, dependency-gated, until stopped.

Signals:
  SIGINT/SIGTERM  stop accepting new tasks, finish the in-flight one, exit
  SIGUSR1         pause picking new tasks (in-flight task keeps running)
  SIGUSR2         resume after SIGUSR1`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("metrics-addr", ":9090", "address to serve /metrics on")
	serveCmd.Flags().String("llm-backend", "vllm", "gateway backend: vllm or fake")
	serveCmd.Flags().Int("concurrency", 0, "pipeline concurrency override (0 = use each run's batch size)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, _ := cmd.Flags().GetString("llm-backend")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	var sink *promptlog.Sink
	if cfg.PromptLog.Enabled {
		sink = promptlog.New(cfg.PromptLog.Dir, true)
		defer sink.Close()
	}

	registry := progress.New(db)
	runner := benchrun.New(db, registry)
	handlers := map[store.TaskType]queue.Handler{
		store.TaskTypeBenchmark: benchmarkHandler(db, runner, cfg.Gateway, backend, sink, concurrency),
	}

	exec := queue.Init(db, handlers, func(e queue.Event) {
		if e.Error != nil {
			slog.Warn("task finished", "task_id", e.TaskID, "status", e.Status, "error", *e.Error)
			return
		}
		slog.Info("task finished", "task_id", e.TaskID, "status", e.Status)
	})

	started, err := exec.Start(ctx)
	if err != nil {
		return fmt.Errorf("start queue executor: %w", err)
	}
	if !started {
		return fmt.Errorf("queue executor already running")
	}
	slog.Info("queue executor started", "poll_interval", cfg.Queue.PollInterval)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	slog.Info("metrics server listening", "addr", metricsAddr)

	return waitForShutdown(exec, srv)
}

// waitForShutdown blocks until a termination signal arrives, toggling
// pause/resume on SIGUSR1/SIGUSR2 in the meantime.
func waitForShutdown(exec *queue.Executor, srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGUSR1:
			exec.Pause()
			slog.Info("queue paused")
		case syscall.SIGUSR2:
			exec.Resume()
			slog.Info("queue resumed")
		default:
			slog.Info("shutting down", "signal", sig)
			exec.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
	return nil
}
