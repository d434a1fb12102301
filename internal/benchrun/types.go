package benchrun

import (
	"context"

	"github.com/ltreme/biasbench/internal/cache"
	"github.com/ltreme/biasbench/internal/dispatcher"
	"github.com/ltreme/biasbench/internal/pipeline"
	"github.com/ltreme/biasbench/internal/progress"
	"github.com/ltreme/biasbench/internal/promptlog"
	"github.com/ltreme/biasbench/internal/store"
)

// Store is the subset of *store.Store a Runner needs: run bookkeeping plus
// everything the progress registry, dispatcher, and result cache read from
// underneath.
type Store interface {
	progress.Source
	dispatcher.Source
	cache.Store

	GetBenchmarkRun(ctx context.Context, id int64) (*store.BenchmarkRun, error)
	SetRunStatus(ctx context.Context, runID int64, status store.RunStatus, errMsg *string) error
	CompletedKeys(ctx context.Context, runID int64) ([]store.CompletedKey, error)

	InsertResultsIgnoreConflicts(ctx context.Context, results []store.BenchmarkResult) (int, error)
	InsertFailLog(ctx context.Context, f store.FailLog) error
}

// Options configures one Execute call. Gateway is supplied by the caller
// (cmd wiring builds a real *gateway.Client via gateway.DiscoverBaseURL, or
// a *gateway.FakeClient for llm_backend=fake / tests) rather than built
// here, since base-URL discovery needs its own error surface
// (gateway_unreachable) before a run is even allowed to start.
type Options struct {
	Gateway     pipeline.Gateway
	Concurrency int
	PromptLog   *promptlog.Sink
}
