package progress

import (
	"context"
	"sync"
	"time"
)

const (
	countRefreshInterval = 30 * time.Second
	totalRefreshInterval = 60 * time.Second
)

// Source is the subset of store queries the registry needs to recompute a
// run's done/total counters. Satisfied by *store.Store without that package
// importing progress back.
type Source interface {
	CountDistinctCompleted(ctx context.Context, runID int64) (int, error)
	CountDatasetPersonas(ctx context.Context, datasetID int64) (int, error)
	ActiveTraitCount(ctx context.Context) (int, error)
}

// Registry is the thread-safe in-memory progress map for all in-flight (and
// recently finished) benchmark runs, modeled on a single process-global
// dict in the original implementation but guarded here by a real mutex.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]*entry
	src     Source
}

// New constructs an empty registry backed by src for count recomputation.
func New(src Source) *Registry {
	return &Registry{
		entries: make(map[int64]*entry),
		src:     src,
	}
}

// Start registers a new run, queued, with the dual_fraction the dispatcher
// will use to estimate the dual-scale-mode total.
func (r *Registry) Start(runID, datasetID int64, dualFraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[runID] = &entry{
		runID:        runID,
		datasetID:    datasetID,
		status:       StatusQueued,
		dualFraction: dualFraction,
	}
}

// Get returns a snapshot of a run's progress, or (Snapshot{}, false) if the
// run isn't tracked.
func (r *Registry) Get(runID int64) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[runID]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// SetStatus transitions a tracked run's status.
func (r *Registry) SetStatus(runID int64, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[runID]; ok {
		e.status = status
	}
}

// RequestCancel marks a run for cancellation and, if it is queued or
// running, flips its status to cancelling right away.
func (r *Registry) RequestCancel(runID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[runID]; ok {
		e.cancelRequested = true
		if e.status == StatusRunning || e.status == StatusQueued {
			e.status = StatusCancelling
		}
	}
}

// CancelRequested reports whether cancellation has been requested for runID.
func (r *Registry) CancelRequested(runID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[runID]
	return ok && e.cancelRequested
}

// Clear drops a run from the registry — called once its terminal status has
// been persisted to the store and the in-memory copy is no longer needed.
func (r *Registry) Clear(runID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, runID)
}

// Refresh recomputes a run's done/total counters, respecting the 30s/60s
// rate limits so a status poll never triggers an expensive COUNT DISTINCT
// more often than necessary.
func (r *Registry) Refresh(ctx context.Context, runID int64) error {
	return r.refresh(ctx, runID, false)
}

// ForceRefresh recomputes a run's done/total counters unconditionally,
// ignoring the rate limits. Used exactly once, when a run reaches a
// terminal state, so the done-vs-total classification isn't stale from
// whatever the last rate-limited poll happened to see.
func (r *Registry) ForceRefresh(ctx context.Context, runID int64) error {
	return r.refresh(ctx, runID, true)
}

func (r *Registry) refresh(ctx context.Context, runID int64, force bool) error {
	r.mu.Lock()
	e, ok := r.entries[runID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	now := time.Now()
	needsCount := force || now.Sub(e.lastCountUpdate) > countRefreshInterval || e.lastCountUpdate.IsZero()
	needsTotal := force || (e.status.running() && (now.Sub(e.lastTotalUpdate) > totalRefreshInterval || e.lastTotalUpdate.IsZero()))
	datasetID := e.datasetID
	dualFraction := e.dualFraction
	runningStatus := e.status.running()
	r.mu.Unlock()

	var done, total int
	var err error
	if needsCount {
		done, err = r.src.CountDistinctCompleted(ctx, runID)
		if err != nil {
			return err
		}
	}

	if needsTotal {
		personas, perr := r.src.CountDatasetPersonas(ctx, datasetID)
		if perr != nil {
			return perr
		}
		traits, terr := r.src.ActiveTraitCount(ctx)
		if terr != nil {
			return terr
		}
		base := personas * traits
		extra := int(float64(base)*dualFraction + 0.5)
		total = base + extra
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok = r.entries[runID]
	if !ok {
		return nil
	}
	if needsCount {
		e.done = done
		e.lastCountUpdate = now
	}
	if needsTotal {
		e.cachedTotal = total
		e.lastTotalUpdate = now
	}
	if runningStatus {
		e.total = e.cachedTotal
	} else if e.total == 0 {
		e.total = e.done
	}
	if e.done > e.total {
		e.total = e.done
	}
	if e.cancelRequested && e.status == StatusRunning {
		e.status = StatusCancelling
	}
	return nil
}
