package benchrun

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ltreme/biasbench/internal/cache"
	"github.com/ltreme/biasbench/internal/dispatcher"
	"github.com/ltreme/biasbench/internal/persister"
	"github.com/ltreme/biasbench/internal/pipeline"
	"github.com/ltreme/biasbench/internal/progress"
	"github.com/ltreme/biasbench/internal/promptfactory"
	"github.com/ltreme/biasbench/internal/store"
)

// Runner executes benchmark runs against a Store, reporting progress
// through a shared Registry. One Runner is typically shared by every run
// the queue executor (C11) dispatches.
type Runner struct {
	store    Store
	registry *progress.Registry
	cache    *cache.Cache
}

// New builds a Runner. registry must be the same instance API handlers
// poll for live status.
func New(s Store, registry *progress.Registry) *Runner {
	return &Runner{store: s, registry: registry, cache: cache.New(s, 0)}
}

// Execute runs runID to a terminal status and persists that status onto
// the benchmark_runs row, mirroring execute_benchmark_run: load the run,
// build the dispatcher/pipeline, drive them while a background poller
// keeps the registry warm, then classify done/partial/cancelled/failed.
func (r *Runner) Execute(ctx context.Context, runID int64, opts Options) (store.RunStatus, error) {
	run, err := r.store.GetBenchmarkRun(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("load benchmark run %d: %w", runID, err)
	}
	if opts.Gateway == nil {
		return "", fmt.Errorf("benchrun: no gateway configured for run %d", runID)
	}

	// Scale mode "in" never emits a second order, so its total has no
	// dual share whatever dual_fraction the run row carries.
	dualFraction := run.DualFraction
	if run.ScaleMode == store.ScaleModeIn {
		dualFraction = 0
	}
	r.registry.Start(runID, run.DatasetID, dualFraction)
	r.registry.SetStatus(runID, progress.StatusRunning)
	defer r.registry.Clear(runID)

	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	go r.registry.Poll(pollCtx, runID)

	completedKeys, err := r.loadCompletedKeys(ctx, runID)
	if err != nil {
		return r.fail(ctx, runID, fmt.Errorf("load completed keys: %w", err))
	}

	disp := dispatcher.New(r.store, dispatcher.Config{
		RunID:               run.ID,
		DatasetID:           run.DatasetID,
		AttrGenerationRunID: run.AttrGenerationRun,
		ScaleMode:           run.ScaleMode,
		DualFraction:        run.DualFraction,
		ModelName:           run.ModelID,
		TemplateVersion:     "v1",
		MaxNewTokens:        run.MaxNewTokens,
		IncludeRationale:    run.IncludeRationale,
	}, dispatcher.NewCompletedSet(completedKeys))

	systemPrompt := ""
	if run.SystemPrompt != nil {
		systemPrompt = *run.SystemPrompt
	}
	factory := promptfactory.New(systemPrompt)
	pst := persister.New(r.store)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = run.BatchSize
	}
	engine := pipeline.New(factory, opts.Gateway, pst, pipeline.Config{
		BatchSize:   run.BatchSize,
		MaxAttempts: run.MaxAttempts,
		Concurrency: concurrency,
		PromptLog:   opts.PromptLog,
	})

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	items, dispatchErrc := disp.Stream(dispatchCtx)
	cancelCheck := func() bool { return r.registry.CancelRequested(runID) }

	summary, runErr := engine.Run(ctx, items, cancelCheck)
	stopPoll()
	// Unblock the dispatcher goroutine if the engine stopped early
	// (cancellation) rather than draining the source to exhaustion.
	stopDispatch()

	if runErr != nil && runErr != pipeline.ErrCancelled {
		return r.fail(ctx, runID, fmt.Errorf("pipeline run: %w", runErr))
	}
	if dispatchErr := <-dispatchErrc; dispatchErr != nil && runErr == nil {
		return r.fail(ctx, runID, fmt.Errorf("dispatcher: %w", dispatchErr))
	}

	if err := r.registry.ForceRefresh(ctx, runID); err != nil {
		return r.fail(ctx, runID, fmt.Errorf("final progress refresh: %w", err))
	}
	snap, _ := r.registry.Get(runID)

	status := classify(summary.Cancelled, snap.Done, snap.Total)
	if err := r.store.SetRunStatus(ctx, runID, status, nil); err != nil {
		return "", fmt.Errorf("set run status: %w", err)
	}
	return status, nil
}

// loadCompletedKeys reads the resume skip-set for runID, fronted by the
// result cache (C3) and content-addressed by the number of rows already
// completed: once that count changes (a retry lands, a shrink/delete
// happens), the key changes and the stale entry is simply never looked up
// again rather than needing an explicit invalidation call.
func (r *Runner) loadCompletedKeys(ctx context.Context, runID int64) ([]store.CompletedKey, error) {
	done, err := r.store.CountDistinctCompleted(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("count completed rows: %w", err)
	}
	key := cache.Key("completed_keys", "", done)

	if payload, hit, _ := r.cache.Get(ctx, runID, "completed_keys", key); hit {
		var keys []store.CompletedKey
		if err := json.Unmarshal([]byte(payload), &keys); err == nil {
			return keys, nil
		}
	}

	keys, err := r.store.CompletedKeys(ctx, runID)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(keys); err == nil {
		_ = r.cache.Put(ctx, runID, "completed_keys", key, string(payload))
	}
	return keys, nil
}

// classify implements §4.10's terminal-status rule: cancelled takes
// priority if seen, otherwise done iff done >= total, partial otherwise
// (which also covers the done=0,total>0 case — a run that persisted
// nothing still needs a status other than "done").
func classify(cancelled bool, done, total int) store.RunStatus {
	if cancelled {
		return store.RunStatusCancelled
	}
	if done >= total {
		return store.RunStatusDone
	}
	return store.RunStatusPartial
}

func (r *Runner) fail(ctx context.Context, runID int64, cause error) (store.RunStatus, error) {
	msg := cause.Error()
	if err := r.store.SetRunStatus(ctx, runID, store.RunStatusFailed, &msg); err != nil {
		return "", fmt.Errorf("%w (also failed to record run failure: %v)", cause, err)
	}
	return store.RunStatusFailed, cause
}
