package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "biasbench_test.db")
	ctx := context.Background()

	st, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	cleanup := func() {
		_ = st.Close()
	}
	return st, cleanup
}

func TestOpen_AppliesMigrations(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()

	var count int
	err := st.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'
		AND name IN ('datasets', 'personas', 'benchmark_runs', 'benchmark_results', 'task_queue')
	`).Scan(&count)
	if err != nil {
		t.Fatalf("failed to query tables: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 core tables, got %d", count)
	}
}

func TestDataset_CreateAndGet(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	d, err := st.CreateDataset(ctx, "pool-v1", DatasetKindPool, `{"size":100}`)
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if d.ID == 0 {
		t.Fatal("expected non-zero dataset id")
	}

	loaded, err := st.GetDataset(ctx, d.ID)
	if err != nil {
		t.Fatalf("get dataset: %v", err)
	}
	if loaded.Name != "pool-v1" || loaded.Kind != DatasetKindPool {
		t.Errorf("unexpected dataset: %+v", loaded)
	}
}

func TestPersona_CreateAndStream(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	d, err := st.CreateDataset(ctx, "pool-v1", DatasetKindPool, "{}")
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		p := Persona{
			UUID:            uuid.New(),
			Age:             30,
			Gender:          "female",
			Education:       "bachelor",
			Occupation:      "engineer",
			MaritalStatus:   "single",
			MigrationStatus: "native",
			Religion:        "none",
			Sexuality:       "heterosexual",
		}
		if err := st.CreatePersona(ctx, p); err != nil {
			t.Fatalf("create persona: %v", err)
		}
		if err := st.AddPersonaToDataset(ctx, d.ID, p.UUID); err != nil {
			t.Fatalf("add persona to dataset: %v", err)
		}
		ids = append(ids, p.UUID)
	}

	count, err := st.CountDatasetPersonas(ctx, d.ID)
	if err != nil {
		t.Fatalf("count dataset personas: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 personas, got %d", count)
	}

	var seen int
	err = st.StreamDatasetPersonas(ctx, d.ID, 2, func(page []Persona) error {
		seen += len(page)
		return nil
	})
	if err != nil {
		t.Fatalf("stream dataset personas: %v", err)
	}
	if seen != 5 {
		t.Errorf("expected to stream 5 personas across pages, got %d", seen)
	}
	_ = ids
}

func TestBenchmarkResults_InsertIgnoresConflicts(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	d, err := st.CreateDataset(ctx, "pool-v1", DatasetKindPool, "{}")
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	run, err := st.CreateBenchmarkRun(ctx, NewBenchmarkRun{
		DatasetID:   d.ID,
		ModelID:     "gpt-test",
		BatchSize:   8,
		MaxAttempts: 3,
		ScaleMode:   ScaleModeIn,
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	personaUUID := uuid.New()
	rating := 4
	result := BenchmarkResult{
		RunID:       run.ID,
		PersonaUUID: personaUUID,
		CaseID:      "friendly",
		ScaleOrder:  ScaleOrderIn,
		Attempt:     1,
		AnswerRaw:   "4",
		Rating:      &rating,
		ModelName:   "gpt-test",
	}

	n, err := st.InsertResultsIgnoreConflicts(ctx, []BenchmarkResult{result})
	if err != nil {
		t.Fatalf("insert results: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row inserted, got %d", n)
	}

	// Re-inserting the identical triple must be silently ignored, not
	// duplicated or errored, since retried batches overlap with committed ones.
	n, err = st.InsertResultsIgnoreConflicts(ctx, []BenchmarkResult{result})
	if err != nil {
		t.Fatalf("re-insert results: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows inserted on conflict, got %d", n)
	}

	keys, err := st.CompletedKeys(ctx, run.ID)
	if err != nil {
		t.Fatalf("completed keys: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("expected 1 completed key, got %d", len(keys))
	}

	count, err := st.CountDistinctCompleted(ctx, run.ID)
	if err != nil {
		t.Fatalf("count distinct completed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected distinct count 1, got %d", count)
	}
}

func TestTaskQueue_FIFOAndDependencies(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	first, err := st.SubmitTask(ctx, NewTask{TaskType: TaskTypeAttrGen, Label: "gen-attrs"})
	if err != nil {
		t.Fatalf("submit first task: %v", err)
	}
	second, err := st.SubmitTask(ctx, NewTask{
		TaskType:  TaskTypeBenchmark,
		Label:     "run-benchmark",
		DependsOn: &first.ID,
	})
	if err != nil {
		t.Fatalf("submit second task: %v", err)
	}

	next, err := st.NextQueuedTask(ctx)
	if err != nil {
		t.Fatalf("next queued task: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected first task to be eligible, got %+v", next)
	}

	if err := st.MarkTaskRunning(ctx, first.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}

	// Second task depends on the still-running first task, so it must not
	// be eligible yet.
	next, err = st.NextQueuedTask(ctx)
	if err != nil {
		t.Fatalf("next queued task: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no eligible task while dependency runs, got %+v", next)
	}

	if err := st.FinishTask(ctx, first.ID, TaskStatusCompleted, nil, nil); err != nil {
		t.Fatalf("finish first task: %v", err)
	}

	next, err = st.NextQueuedTask(ctx)
	if err != nil {
		t.Fatalf("next queued task: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected second task to become eligible, got %+v", next)
	}

	if err := st.MarkTaskRunning(ctx, second.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}

	n, err := st.RecoverOrphans(ctx)
	if err != nil {
		t.Fatalf("recover orphans: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 orphan recovered, got %d", n)
	}

	recovered, err := st.GetTask(ctx, second.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if recovered.Status != TaskStatusQueued {
		t.Errorf("expected recovered task to be queued, got %s", recovered.Status)
	}
}

func TestTaskQueue_BlockedDependentsCascade(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	parent, err := st.SubmitTask(ctx, NewTask{TaskType: TaskTypeAttrGen, Label: "gen-attrs"})
	if err != nil {
		t.Fatalf("submit parent: %v", err)
	}
	child, err := st.SubmitTask(ctx, NewTask{
		TaskType:  TaskTypeBenchmark,
		Label:     "run-benchmark",
		DependsOn: &parent.ID,
	})
	if err != nil {
		t.Fatalf("submit child: %v", err)
	}

	if err := st.MarkTaskRunning(ctx, parent.ID); err != nil {
		t.Fatalf("mark parent running: %v", err)
	}
	errMsg := "gateway unreachable"
	if err := st.FinishTask(ctx, parent.ID, TaskStatusFailed, nil, &errMsg); err != nil {
		t.Fatalf("fail parent: %v", err)
	}

	blocked, err := st.BlockedDependents(ctx)
	if err != nil {
		t.Fatalf("blocked dependents: %v", err)
	}
	if len(blocked) != 1 || blocked[0].ID != child.ID {
		t.Fatalf("expected child task blocked, got %+v", blocked)
	}
}

func TestCacheEntries_PutGetInvalidate(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	entry := CacheEntry{RunID: 1, Kind: "trait_summary", Key: "friendly", PayloadJSON: `{"mean":3.5}`}
	if err := st.PutCacheEntry(ctx, entry); err != nil {
		t.Fatalf("put cache entry: %v", err)
	}

	got, err := st.GetCacheEntry(ctx, 1, "trait_summary", "friendly")
	if err != nil {
		t.Fatalf("get cache entry: %v", err)
	}
	if got == nil || got.PayloadJSON != entry.PayloadJSON {
		t.Fatalf("unexpected cache entry: %+v", got)
	}

	miss, err := st.GetCacheEntry(ctx, 1, "trait_summary", "unknown")
	if err != nil {
		t.Fatalf("get missing cache entry: %v", err)
	}
	if miss != nil {
		t.Errorf("expected cache miss, got %+v", miss)
	}

	if err := st.InvalidateCacheEntries(ctx, 1); err != nil {
		t.Fatalf("invalidate cache entries: %v", err)
	}
	got, err = st.GetCacheEntry(ctx, 1, "trait_summary", "friendly")
	if err != nil {
		t.Fatalf("get cache entry after invalidate: %v", err)
	}
	if got != nil {
		t.Errorf("expected cache entry gone after invalidation, got %+v", got)
	}
}

func TestCountries_UpsertAndList(t *testing.T) {
	st, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := st.UpsertCountry(ctx, 1, "Deutschland"); err != nil {
		t.Fatalf("upsert country: %v", err)
	}
	if err := st.UpsertCountry(ctx, 2, "Türkei"); err != nil {
		t.Fatalf("upsert country: %v", err)
	}
	if err := st.UpsertCountry(ctx, 1, "Deutschland (BRD)"); err != nil {
		t.Fatalf("upsert country update: %v", err)
	}

	names, err := st.CountryNames(ctx)
	if err != nil {
		t.Fatalf("country names: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("len(names) = %d, want 2", len(names))
	}
	if names[1] != "Deutschland (BRD)" {
		t.Errorf("names[1] = %q, want updated name", names[1])
	}
}
