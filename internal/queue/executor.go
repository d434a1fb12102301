package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ltreme/biasbench/internal/metrics"
	"github.com/ltreme/biasbench/internal/store"
)

const (
	defaultPollInterval  = 500 * time.Millisecond
	errorSnippetLen      = 500
)

// Executor is the process-wide task-queue worker loop: one instance, one
// task in flight at a time. Use Init/Instance to access the singleton, or
// New directly in tests that want an isolated instance.
type Executor struct {
	st           Store
	handlers     map[store.TaskType]Handler
	onEvent      func(Event)
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds an Executor. onEvent may be nil.
func New(st Store, handlers map[store.TaskType]Handler, onEvent func(Event)) *Executor {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	return &Executor{
		st:           st,
		handlers:     handlers,
		onEvent:      onEvent,
		pollInterval: defaultPollInterval,
	}
}

var (
	instanceMu sync.Mutex
	instance   *Executor
)

// Init installs the process-wide Executor singleton on first call; later
// calls return the existing instance unchanged, mirroring the original's
// class-level _instance guarded by a lock.
func Init(st Store, handlers map[store.TaskType]Handler, onEvent func(Event)) *Executor {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		instance = New(st, handlers, onEvent)
	}
	return instance
}

// Instance returns the process-wide singleton, or nil if Init hasn't run.
func Instance() *Executor {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// ResetForTest clears the singleton so a subsequent Init builds a fresh
// Executor — test-only, mirroring the fixture's `QueueExecutor._instance =
// None` reset between cases.
func ResetForTest() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
}

// Start recovers orphaned tasks and launches the worker loop. Returns
// false without error if the executor is already running.
func (e *Executor) Start(ctx context.Context) (bool, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return false, nil
	}
	e.running = true
	e.paused = false
	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	orphans, err := e.st.RecoverOrphans(ctx)
	if err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		cancel()
		return false, fmt.Errorf("recover orphans: %w", err)
	}
	if orphans > 0 {
		metrics.TaskOrphansRecoveredTotal.Add(float64(orphans))
	}

	go e.loop(loopCtx)
	return true, nil
}

// Stop requests cooperative shutdown: the loop finishes whatever task is
// currently in flight (never interrupted) and then exits without picking
// up new work. Returns false if the executor wasn't running.
func (e *Executor) Stop() bool {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return false
	}
	cancel := e.cancel
	e.mu.Unlock()
	cancel()
	return true
}

// Pause stops the loop from picking new tasks; the in-flight task (if any)
// keeps running. Returns false if the executor isn't running.
func (e *Executor) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return false
	}
	e.paused = true
	return true
}

// Resume reverses Pause. Returns false if the executor isn't running.
func (e *Executor) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return false
	}
	e.paused = false
	return true
}

// IsRunning reports whether the worker loop is active.
func (e *Executor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// IsPaused reports whether the loop is currently paused.
func (e *Executor) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Executor) loop(ctx context.Context) {
	defer func() {
		e.mu.Lock()
		e.running = false
		e.paused = false
		e.mu.Unlock()
		close(e.done)
	}()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if e.IsPaused() {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			continue
		}

		if !e.tick(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// tick cascade-cancels any task whose dependency just failed or was
// cancelled, then picks and runs the next eligible task. Returns true if
// it did anything, so the loop can move on without waiting out a full
// poll interval.
func (e *Executor) tick(ctx context.Context) bool {
	if e.cascadeCancelBlocked(ctx) {
		return true
	}

	task, err := e.st.NextQueuedTask(ctx)
	if err != nil || task == nil {
		return false
	}

	handler, ok := e.handlers[task.TaskType]
	if !ok {
		msg := fmt.Sprintf("no handler registered for task type %q", task.TaskType)
		e.finish(ctx, task.ID, task.TaskType, store.TaskStatusFailed, nil, &msg)
		return true
	}

	if err := e.st.MarkTaskRunning(ctx, task.ID); err != nil {
		return true
	}
	e.onEvent(Event{TaskID: task.ID, Status: store.TaskStatusRunning})
	metrics.TasksRunning.Set(1)
	defer metrics.TasksRunning.Set(0)

	resultRunID, runErr := handler(ctx, *task)
	if runErr != nil {
		msg := truncate(runErr.Error(), errorSnippetLen)
		e.finish(ctx, task.ID, task.TaskType, store.TaskStatusFailed, nil, &msg)
		return true
	}
	e.finish(ctx, task.ID, task.TaskType, store.TaskStatusCompleted, resultRunID, nil)
	return true
}

func (e *Executor) cascadeCancelBlocked(ctx context.Context) bool {
	blocked, err := e.st.BlockedDependents(ctx)
	if err != nil || len(blocked) == 0 {
		return false
	}
	for _, task := range blocked {
		state := "unknown"
		if task.DependsOn != nil {
			if parent, err := e.st.GetTask(ctx, *task.DependsOn); err == nil {
				state = string(parent.Status)
			}
		}
		msg := fmt.Sprintf("dependency %s", state)
		e.finish(ctx, task.ID, task.TaskType, store.TaskStatusCancelled, nil, &msg)
	}
	return true
}

func (e *Executor) finish(ctx context.Context, taskID int64, taskType store.TaskType, status store.TaskStatus, resultRunID *int64, errMsg *string) {
	if err := e.st.FinishTask(ctx, taskID, status, resultRunID, errMsg); err != nil {
		return
	}
	e.onEvent(Event{TaskID: taskID, Status: status, Error: errMsg})
	metrics.RecordTaskFinished(string(taskType), string(status))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
