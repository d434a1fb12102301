package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ltreme/biasbench/internal/store"
)

// fakeStore is an in-memory stand-in for *store.Store's task-queue
// surface, implementing the same dependency-gating rules as the real SQL.
type fakeStore struct {
	mu      sync.Mutex
	tasks   map[int64]*store.TaskQueueRow
	nextID  int64
	orphans int
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[int64]*store.TaskQueueRow)}
}

func (f *fakeStore) add(taskType store.TaskType, status store.TaskStatus, dependsOn *int64) *store.TaskQueueRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := &store.TaskQueueRow{
		ID:        f.nextID,
		TaskType:  taskType,
		Status:    status,
		DependsOn: dependsOn,
		CreatedAt: time.Now().Add(time.Duration(f.nextID) * time.Millisecond),
	}
	f.tasks[t.ID] = t
	return t
}

func (f *fakeStore) RecoverOrphans(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tasks {
		if t.Status == store.TaskStatusRunning {
			t.Status = store.TaskStatusQueued
			n++
		}
	}
	f.orphans += n
	return n, nil
}

func (f *fakeStore) NextQueuedTask(ctx context.Context) (*store.TaskQueueRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *store.TaskQueueRow
	for _, t := range f.tasks {
		if t.Status != store.TaskStatusQueued {
			continue
		}
		if t.DependsOn != nil {
			dep, ok := f.tasks[*t.DependsOn]
			if !ok || dep.Status != store.TaskStatusCompleted {
				continue
			}
		}
		if best == nil || t.CreatedAt.Before(best.CreatedAt) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeStore) BlockedDependents(ctx context.Context) ([]store.TaskQueueRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.TaskQueueRow
	for _, t := range f.tasks {
		if t.Status != store.TaskStatusQueued || t.DependsOn == nil {
			continue
		}
		dep, ok := f.tasks[*t.DependsOn]
		if !ok {
			continue
		}
		if dep.Status == store.TaskStatusFailed || dep.Status == store.TaskStatusCancelled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTask(ctx context.Context, id int64) (*store.TaskQueueRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) MarkTaskRunning(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return errors.New("not found")
	}
	t.Status = store.TaskStatusRunning
	return nil
}

func (f *fakeStore) FinishTask(ctx context.Context, id int64, status store.TaskStatus, resultRunID *int64, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return errors.New("not found")
	}
	t.Status = status
	t.ResultRunID = resultRunID
	t.Error = errMsg
	return nil
}

func (f *fakeStore) statusOf(id int64) store.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id].Status
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func instantHandler(resultID int64, err error) Handler {
	return func(ctx context.Context, task store.TaskQueueRow) (*int64, error) {
		if err != nil {
			return nil, err
		}
		id := resultID
		return &id, nil
	}
}

func TestExecutor_StartTwiceReturnsFalse(t *testing.T) {
	fs := newFakeStore()
	e := New(fs, map[store.TaskType]Handler{}, nil)
	e.pollInterval = 10 * time.Millisecond

	ok, err := e.Start(context.Background())
	if err != nil || !ok {
		t.Fatalf("first Start: ok=%v err=%v", ok, err)
	}
	ok, err = e.Start(context.Background())
	if err != nil || ok {
		t.Fatalf("second Start: ok=%v err=%v, want false/nil", ok, err)
	}
	e.Stop()
}

func TestExecutor_PauseResume(t *testing.T) {
	fs := newFakeStore()
	e := New(fs, map[store.TaskType]Handler{}, nil)
	e.pollInterval = 10 * time.Millisecond

	if e.Pause() {
		t.Fatal("Pause on stopped executor should return false")
	}

	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	if !e.Pause() {
		t.Fatal("Pause should return true once running")
	}
	if !e.IsPaused() {
		t.Fatal("expected IsPaused true")
	}
	if !e.Resume() {
		t.Fatal("Resume should return true")
	}
	if e.IsPaused() {
		t.Fatal("expected IsPaused false after Resume")
	}
}

func TestExecutor_RecoversOrphansOnStart(t *testing.T) {
	fs := newFakeStore()
	orphan := fs.add(store.TaskTypeBenchmark, store.TaskStatusRunning, nil)

	e := New(fs, map[store.TaskType]Handler{
		store.TaskTypeBenchmark: instantHandler(1, nil),
	}, nil)
	e.pollInterval = 10 * time.Millisecond

	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	waitFor(t, time.Second, func() bool {
		return fs.statusOf(orphan.ID) == store.TaskStatusCompleted
	})
}

func TestExecutor_DeferredUntilDependencyCompletes(t *testing.T) {
	fs := newFakeStore()
	parent := fs.add(store.TaskTypeAttrGen, store.TaskStatusQueued, nil)
	child := fs.add(store.TaskTypeBenchmark, store.TaskStatusQueued, &parent.ID)

	var events []Event
	var mu sync.Mutex

	e := New(fs, map[store.TaskType]Handler{
		store.TaskTypeAttrGen:   instantHandler(10, nil),
		store.TaskTypeBenchmark: instantHandler(20, nil),
	}, func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	e.pollInterval = 10 * time.Millisecond

	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	waitFor(t, time.Second, func() bool {
		return fs.statusOf(parent.ID) == store.TaskStatusCompleted &&
			fs.statusOf(child.ID) == store.TaskStatusCompleted
	})
}

func TestExecutor_CascadeCancelsDependentsOfFailedParent(t *testing.T) {
	fs := newFakeStore()
	parent := fs.add(store.TaskTypeAttrGen, store.TaskStatusQueued, nil)
	child := fs.add(store.TaskTypeBenchmark, store.TaskStatusQueued, &parent.ID)

	e := New(fs, map[store.TaskType]Handler{
		store.TaskTypeAttrGen: instantHandler(0, errors.New("boom")),
	}, nil)
	e.pollInterval = 10 * time.Millisecond

	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	waitFor(t, time.Second, func() bool {
		return fs.statusOf(parent.ID) == store.TaskStatusFailed &&
			fs.statusOf(child.ID) == store.TaskStatusCancelled
	})

	cp, err := fs.GetTask(context.Background(), child.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if cp.Error == nil || *cp.Error != "dependency failed" {
		t.Errorf("child error = %v, want \"dependency failed\"", cp.Error)
	}
}

func TestExecutor_UnknownTaskTypeFailsImmediately(t *testing.T) {
	fs := newFakeStore()
	task := fs.add(store.TaskTypeDatasetBuild, store.TaskStatusQueued, nil)

	e := New(fs, map[store.TaskType]Handler{}, nil)
	e.pollInterval = 10 * time.Millisecond

	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	waitFor(t, time.Second, func() bool {
		return fs.statusOf(task.ID) == store.TaskStatusFailed
	})
}

func TestExecutor_SingletonInitReturnsSameInstance(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	fs := newFakeStore()
	a := Init(fs, map[store.TaskType]Handler{}, nil)
	b := Init(newFakeStore(), map[store.TaskType]Handler{}, nil)
	if a != b {
		t.Fatal("Init should return the same instance on subsequent calls")
	}
	if Instance() != a {
		t.Fatal("Instance() should return the initialized singleton")
	}
}
