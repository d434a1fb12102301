package pipeline

import (
	"context"

	"github.com/ltreme/biasbench/internal/errkind"
	"github.com/ltreme/biasbench/internal/gateway"
	"github.com/ltreme/biasbench/internal/promptlog"
	"github.com/ltreme/biasbench/internal/store"
)

// Gateway is the subset of *gateway.Client the pipeline calls.
type Gateway interface {
	Complete(ctx context.Context, spec gateway.PromptSpec) gateway.Result
}

// Persister is the subset of *persister.Persister the pipeline calls.
type Persister interface {
	PersistResults(ctx context.Context, results []store.BenchmarkResult) (int, error)
	PersistFailure(ctx context.Context, f store.FailLog, kind errkind.Kind) error
}

// Config bounds one pipeline run.
type Config struct {
	BatchSize   int
	MaxAttempts int
	Concurrency int

	// PromptLog is an optional side-channel sink; nil disables logging
	// entirely (the caller never has to check PROMPT_LOG_ENABLED itself).
	PromptLog *promptlog.Sink
}

// Summary counts what a Run did, for the caller's terminal-status decision.
type Summary struct {
	Succeeded           int
	MaxAttemptsExceeded int
	Cancelled           bool
}
