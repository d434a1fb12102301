package persister

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ltreme/biasbench/internal/errkind"
	"github.com/ltreme/biasbench/internal/metrics"
	"github.com/ltreme/biasbench/internal/store"
)

// maxRetries mirrors the original persister's three-attempt retry budget
// for transient DB errors encountered despite the write lock.
const maxRetries = 3

// Store is the subset of *store.Store the persister needs.
type Store interface {
	InsertResultsIgnoreConflicts(ctx context.Context, results []store.BenchmarkResult) (int, error)
	InsertFailLog(ctx context.Context, f store.FailLog) error
}

// progressCounter is one run's in-memory progress state.
type progressCounter struct {
	count      int
	lastUpdate time.Time
}

// writeMu is shared by every Persister in the process, so result batches
// from concurrent runs are serialized too.
var writeMu sync.Mutex

// Persister serializes result writes through the process-wide writeMu —
// only one batch is ever in flight against the store at a time, which is
// cheap insurance against SQLite writer contention regardless of how many
// pipeline workers are producing batches concurrently.
type Persister struct {
	store Store

	countersMu sync.Mutex
	counters   map[int64]*progressCounter
}

// New builds a Persister backed by store.
func New(s Store) *Persister {
	return &Persister{
		store:    s,
		counters: make(map[int64]*progressCounter),
	}
}

// PersistResults writes a batch of results, retrying on the transient error
// kinds a concurrent-write database can surface, and advances the run's
// in-memory progress counter by the number of rows actually inserted.
func (p *Persister) PersistResults(ctx context.Context, results []store.BenchmarkResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	writeStart := time.Now()

	var inserted int
	op := func() error {
		n, err := p.store.InsertResultsIgnoreConflicts(ctx, results)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		inserted = n
		return nil
	}

	policy := backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(100*time.Millisecond),
			backoff.WithMultiplier(2),
		),
		maxRetries-1,
	)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return 0, err
	}

	metrics.RecordPersistBatch(time.Since(writeStart), inserted, 0)
	p.addProgress(results[0].RunID, inserted)
	return inserted, nil
}

// isRetryable reports whether err looks like a transient SQLite contention
// error rather than a genuine data or connectivity problem. The original
// persister matched on substrings of the driver error message; Go's
// sqlite3 driver exposes the same categories through its error text.
func isRetryable(err error) bool {
	msg := err.Error()
	for _, needle := range []string{"deadlock", "database is locked", "busy", "serialization", "timeout"} {
		if containsFold(msg, needle) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	sl, subl := len(s), len(substr)
	if subl == 0 {
		return true
	}
	for i := 0; i+subl <= sl; i++ {
		if equalFold(s[i:i+subl], substr) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// PersistFailure records a failed attempt. kind must be one of the shared
// errkind constants.
func (p *Persister) PersistFailure(ctx context.Context, f store.FailLog, kind errkind.Kind) error {
	f.ErrorKind = kind.String()
	start := time.Now()
	if err := p.store.InsertFailLog(ctx, f); err != nil {
		return err
	}
	metrics.RecordPersistBatch(time.Since(start), 0, 1)
	return nil
}

func (p *Persister) addProgress(runID int64, n int) {
	if n == 0 {
		return
	}
	p.countersMu.Lock()
	defer p.countersMu.Unlock()
	c, ok := p.counters[runID]
	if !ok {
		c = &progressCounter{}
		p.counters[runID] = c
	}
	c.count += n
	c.lastUpdate = time.Now()
}

// ProgressCount returns the in-memory result count tracked for a run.
func (p *Persister) ProgressCount(runID int64) int {
	p.countersMu.Lock()
	defer p.countersMu.Unlock()
	c, ok := p.counters[runID]
	if !ok {
		return 0
	}
	return c.count
}

// SetProgressCount overrides a run's in-memory counter, for resume: the
// dispatcher's skip-set already tells us how many rows exist on disk, so
// the counter can start there instead of at zero.
func (p *Persister) SetProgressCount(runID int64, count int) {
	p.countersMu.Lock()
	defer p.countersMu.Unlock()
	p.counters[runID] = &progressCounter{count: count, lastUpdate: time.Now()}
}

// ResetProgressCount clears a run's in-memory counter, e.g. when a run is
// being restarted from scratch.
func (p *Persister) ResetProgressCount(runID int64) {
	p.countersMu.Lock()
	defer p.countersMu.Unlock()
	delete(p.counters, runID)
}
