package persister

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ltreme/biasbench/internal/errkind"
	"github.com/ltreme/biasbench/internal/store"
)

type fakeStore struct {
	insertCalls   int
	failOnce      error
	insertedRows  []store.BenchmarkResult
	failLogs      []store.FailLog
}

func (f *fakeStore) InsertResultsIgnoreConflicts(ctx context.Context, results []store.BenchmarkResult) (int, error) {
	f.insertCalls++
	if f.failOnce != nil {
		err := f.failOnce
		f.failOnce = nil
		return 0, err
	}
	f.insertedRows = append(f.insertedRows, results...)
	return len(results), nil
}

func (f *fakeStore) InsertFailLog(ctx context.Context, fl store.FailLog) error {
	f.failLogs = append(f.failLogs, fl)
	return nil
}

func sampleResults(runID int64, n int) []store.BenchmarkResult {
	out := make([]store.BenchmarkResult, n)
	for i := range out {
		out[i] = store.BenchmarkResult{RunID: runID, PersonaUUID: uuid.New(), CaseID: "freundlich"}
	}
	return out
}

func TestPersistResults_InsertsAndTracksProgress(t *testing.T) {
	fs := &fakeStore{}
	p := New(fs)

	n, err := p.PersistResults(context.Background(), sampleResults(1, 3))
	if err != nil {
		t.Fatalf("PersistResults: %v", err)
	}
	if n != 3 {
		t.Errorf("inserted = %d, want 3", n)
	}
	if got := p.ProgressCount(1); got != 3 {
		t.Errorf("ProgressCount = %d, want 3", got)
	}
}

func TestPersistResults_EmptyBatchIsNoop(t *testing.T) {
	fs := &fakeStore{}
	p := New(fs)

	n, err := p.PersistResults(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("PersistResults(nil) = %d, %v, want 0, nil", n, err)
	}
	if fs.insertCalls != 0 {
		t.Errorf("expected no store call for empty batch, got %d", fs.insertCalls)
	}
}

func TestPersistResults_RetriesOnTransientError(t *testing.T) {
	fs := &fakeStore{failOnce: errors.New("database is locked")}
	p := New(fs)

	n, err := p.PersistResults(context.Background(), sampleResults(1, 2))
	if err != nil {
		t.Fatalf("PersistResults: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}
	if fs.insertCalls != 2 {
		t.Errorf("insertCalls = %d, want 2 (one failure, one retry)", fs.insertCalls)
	}
}

func TestPersistResults_NonRetryableErrorFailsImmediately(t *testing.T) {
	fs := &fakeStore{failOnce: errors.New("constraint violation")}
	p := New(fs)

	_, err := p.PersistResults(context.Background(), sampleResults(1, 1))
	if err == nil {
		t.Fatal("expected error")
	}
	if fs.insertCalls != 1 {
		t.Errorf("insertCalls = %d, want 1 (no retry for non-transient error)", fs.insertCalls)
	}
}

func TestPersistFailure_SetsErrorKindString(t *testing.T) {
	fs := &fakeStore{}
	p := New(fs)

	err := p.PersistFailure(context.Background(), store.FailLog{
		RunID:       1,
		PersonaUUID: uuid.New(),
		ModelID:     "m1",
		Attempt:     1,
	}, errkind.ParseError)
	if err != nil {
		t.Fatalf("PersistFailure: %v", err)
	}
	if len(fs.failLogs) != 1 {
		t.Fatalf("expected 1 fail log, got %d", len(fs.failLogs))
	}
	if fs.failLogs[0].ErrorKind != string(errkind.ParseError) {
		t.Errorf("ErrorKind = %q, want %q", fs.failLogs[0].ErrorKind, errkind.ParseError)
	}
}

func TestProgressCount_SetAndReset(t *testing.T) {
	fs := &fakeStore{}
	p := New(fs)

	p.SetProgressCount(5, 42)
	if got := p.ProgressCount(5); got != 42 {
		t.Errorf("ProgressCount = %d, want 42", got)
	}

	p.ResetProgressCount(5)
	if got := p.ProgressCount(5); got != 0 {
		t.Errorf("ProgressCount after reset = %d, want 0", got)
	}
}

func TestProgressCount_UnknownRunIsZero(t *testing.T) {
	p := New(&fakeStore{})
	if got := p.ProgressCount(999); got != 0 {
		t.Errorf("ProgressCount = %d, want 0", got)
	}
}
