package benchrun

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/ltreme/biasbench/internal/gateway"
	"github.com/ltreme/biasbench/internal/progress"
	"github.com/ltreme/biasbench/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "biasbench.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedPersonasAndTraits(t *testing.T, st *store.Store, nPersonas int) (*store.Dataset, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	ds, err := st.CreateDataset(ctx, "test-pool", store.DatasetKindPool, "{}")
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}

	var ids []uuid.UUID
	for i := 0; i < nPersonas; i++ {
		p := store.Persona{
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
		if err := st.AddPersonaToDataset(ctx, ds.ID, p.UUID); err != nil {
			t.Fatalf("add persona to dataset: %v", err)
		}
		ids = append(ids, p.UUID)
	}

	for _, traitID := range []string{"T1", "T2"} {
		if err := st.UpsertTrait(ctx, store.Trait{ID: traitID, Adjective: "freundlich", IsActive: true}); err != nil {
			t.Fatalf("upsert trait %s: %v", traitID, err)
		}
	}

	return ds, ids
}

func createRun(t *testing.T, st *store.Store, ds *store.Dataset, mode store.ScaleMode, batchSize, maxAttempts int, dualFraction float64) *store.BenchmarkRun {
	t.Helper()
	run, err := st.CreateBenchmarkRun(context.Background(), store.NewBenchmarkRun{
		DatasetID:    ds.ID,
		ModelID:      "test-model",
		BatchSize:    batchSize,
		MaxAttempts:  maxAttempts,
		ScaleMode:    mode,
		DualFraction: dualFraction,
		MaxNewTokens: 64,
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	return run
}

// sequencedGateway returns one canned response per call for the same item
// (spec.ID), repeating the last entry once exhausted; calls counts every
// call across all items.
type sequencedGateway struct {
	mu        sync.Mutex
	responses []string
	calls     int
	perID     map[string]int
}

func (g *sequencedGateway) Complete(ctx context.Context, spec gateway.PromptSpec) gateway.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.perID == nil {
		g.perID = make(map[string]int)
	}
	idx := g.perID[spec.ID]
	if idx >= len(g.responses) {
		idx = len(g.responses) - 1
	}
	g.perID[spec.ID]++
	g.calls++
	return gateway.Result{ID: spec.ID, RawText: g.responses[idx]}
}

func countResults(t *testing.T, st *store.Store, runID int64) int {
	t.Helper()
	n := 0
	err := st.ResultsForRun(context.Background(), runID, 100, func(rows []store.BenchmarkResult) error {
		n += len(rows)
		return nil
	})
	if err != nil {
		t.Fatalf("results for run: %v", err)
	}
	return n
}

func TestExecute_SimpleRun(t *testing.T) {
	st := newTestStore(t)
	ds, _ := seedPersonasAndTraits(t, st, 2)
	run := createRun(t, st, ds, store.ScaleModeIn, 2, 1, 0)

	registry := progress.New(st)
	runner := New(st, registry)
	gw := &sequencedGateway{responses: []string{`{"rating": 3}`}}

	status, err := runner.Execute(context.Background(), run.ID, Options{Gateway: gw})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if status != store.RunStatusDone {
		t.Errorf("status = %q, want done", status)
	}
	if n := countResults(t, st, run.ID); n != 4 {
		t.Errorf("result rows = %d, want 4", n)
	}
	fails, err := st.FailLogForRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("fail log: %v", err)
	}
	if len(fails) != 0 {
		t.Errorf("fail log entries = %d, want 0", len(fails))
	}
}

func TestExecute_RetryToSuccess(t *testing.T) {
	st := newTestStore(t)
	ds, _ := seedPersonasAndTraits(t, st, 2)
	run := createRun(t, st, ds, store.ScaleModeIn, 2, 2, 0)

	registry := progress.New(st)
	runner := New(st, registry)
	gw := &sequencedGateway{responses: []string{"not parseable", `{"rating": 4}`}}

	status, err := runner.Execute(context.Background(), run.ID, Options{Gateway: gw})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if status != store.RunStatusDone {
		t.Errorf("status = %q, want done", status)
	}
	if n := countResults(t, st, run.ID); n != 4 {
		t.Errorf("result rows = %d, want 4", n)
	}
	var ratedFour int
	err = st.ResultsForRun(context.Background(), run.ID, 100, func(rows []store.BenchmarkResult) error {
		for _, r := range rows {
			if r.Rating != nil && *r.Rating == 4 {
				ratedFour++
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("results for run: %v", err)
	}
	if ratedFour != 4 {
		t.Errorf("rows with rating 4 = %d, want 4", ratedFour)
	}
	fails, err := st.FailLogForRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("fail log: %v", err)
	}
	if len(fails) != 4 {
		t.Errorf("fail log entries = %d, want 4", len(fails))
	}
}

func TestExecute_RetryExhausted(t *testing.T) {
	st := newTestStore(t)
	ds, _ := seedPersonasAndTraits(t, st, 2)
	run := createRun(t, st, ds, store.ScaleModeIn, 2, 3, 0)

	registry := progress.New(st)
	runner := New(st, registry)
	gw := &sequencedGateway{responses: []string{"not parseable"}}

	status, err := runner.Execute(context.Background(), run.ID, Options{Gateway: gw})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if status != store.RunStatusPartial {
		t.Errorf("status = %q, want partial", status)
	}
	if n := countResults(t, st, run.ID); n != 0 {
		t.Errorf("result rows = %d, want 0", n)
	}
	fails, err := st.FailLogForRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("fail log: %v", err)
	}
	if len(fails) != 16 {
		t.Errorf("fail log entries = %d, want 16 (3 failed attempts + 1 max_attempts_exceeded per item)", len(fails))
	}
}

func TestExecute_Resume(t *testing.T) {
	st := newTestStore(t)
	ds, ids := seedPersonasAndTraits(t, st, 2)
	run := createRun(t, st, ds, store.ScaleModeIn, 2, 1, 0)

	rating := 3
	for _, traitID := range []string{"T1", "T2"} {
		err := st.InsertResultsIgnoreConflicts(context.Background(), []store.BenchmarkResult{{
			RunID:       run.ID,
			PersonaUUID: ids[0],
			CaseID:      traitID,
			ScaleOrder:  store.ScaleOrderIn,
			Attempt:     1,
			AnswerRaw:   `{"rating": 3}`,
			Rating:      &rating,
			ModelName:   "test-model",
		}})
		if err != nil {
			t.Fatalf("seed completed result: %v", err)
		}
	}

	registry := progress.New(st)
	runner := New(st, registry)
	gw := &sequencedGateway{responses: []string{`{"rating": 3}`}}

	status, err := runner.Execute(context.Background(), run.ID, Options{Gateway: gw})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if status != store.RunStatusDone {
		t.Errorf("status = %q, want done", status)
	}
	if gw.calls != 2 {
		t.Errorf("gateway calls = %d, want 2 (only P2's two traits)", gw.calls)
	}
	if n := countResults(t, st, run.ID); n != 4 {
		t.Errorf("result rows = %d, want 4", n)
	}
}

func TestExecute_DualOrder(t *testing.T) {
	st := newTestStore(t)
	ds, _ := seedPersonasAndTraits(t, st, 2)
	run := createRun(t, st, ds, store.ScaleModeDual, 4, 1, 1.0)

	registry := progress.New(st)
	runner := New(st, registry)
	gw := &sequencedGateway{responses: []string{`{"rating": 2}`}}

	status, err := runner.Execute(context.Background(), run.ID, Options{Gateway: gw})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if status != store.RunStatusDone {
		t.Errorf("status = %q, want done", status)
	}
	if n := countResults(t, st, run.ID); n != 8 {
		t.Errorf("result rows = %d, want 8", n)
	}

	var inCount, revCount int
	err = st.ResultsForRun(context.Background(), run.ID, 100, func(rows []store.BenchmarkResult) error {
		for _, r := range rows {
			switch r.ScaleOrder {
			case store.ScaleOrderIn:
				inCount++
				if r.Rating == nil || *r.Rating != 2 {
					t.Errorf("in-order rating = %v, want 2", r.Rating)
				}
			case store.ScaleOrderRev:
				revCount++
				if r.Rating == nil || *r.Rating != 4 {
					t.Errorf("rev-order rating = %v, want 4 (6-2)", r.Rating)
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("results for run: %v", err)
	}
	if inCount != 4 || revCount != 4 {
		t.Errorf("inCount=%d revCount=%d, want 4/4", inCount, revCount)
	}
}

// cancellingGateway cancels the run after its first call returns, so the
// pipeline's next batch boundary observes cancellation.
type cancellingGateway struct {
	registry *progress.Registry
	runID    int64
	mu       sync.Mutex
	calls    int
}

func (g *cancellingGateway) Complete(ctx context.Context, spec gateway.PromptSpec) gateway.Result {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.registry.RequestCancel(g.runID)
	return gateway.Result{ID: spec.ID, RawText: `{"rating": 3}`}
}

func TestExecute_Cancellation(t *testing.T) {
	st := newTestStore(t)
	ds, _ := seedPersonasAndTraits(t, st, 2)
	run := createRun(t, st, ds, store.ScaleModeIn, 1, 1, 0)

	registry := progress.New(st)
	runner := New(st, registry)
	gw := &cancellingGateway{registry: registry, runID: run.ID}

	status, err := runner.Execute(context.Background(), run.ID, Options{Gateway: gw})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if status != store.RunStatusCancelled {
		t.Errorf("status = %q, want cancelled", status)
	}
	n := countResults(t, st, run.ID)
	if n == 0 || n >= 4 {
		t.Errorf("result rows = %d, want between 1 and 3 (cancelled mid-run)", n)
	}
}
