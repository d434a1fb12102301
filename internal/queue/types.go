package queue

import (
	"context"

	"github.com/ltreme/biasbench/internal/store"
)

// Store is the subset of *store.Store the executor needs to drive the
// task queue's state machine.
type Store interface {
	RecoverOrphans(ctx context.Context) (int, error)
	NextQueuedTask(ctx context.Context) (*store.TaskQueueRow, error)
	BlockedDependents(ctx context.Context) ([]store.TaskQueueRow, error)
	GetTask(ctx context.Context, id int64) (*store.TaskQueueRow, error)
	MarkTaskRunning(ctx context.Context, id int64) error
	FinishTask(ctx context.Context, id int64, status store.TaskStatus, resultRunID *int64, errMsg *string) error
}

// Handler runs one task's config to completion and returns the id of the
// run/result it produced, if any. Handlers are looked up by TaskType —
// C10 (benchrun) is wired in as the benchmark handler; attrgen and
// dataset-build handlers are sibling executors out of this package's scope.
type Handler func(ctx context.Context, task store.TaskQueueRow) (resultRunID *int64, err error)

// Event is emitted on every task state transition the executor makes, for
// a caller-supplied notification hook (webhook, SSE broadcast, …).
type Event struct {
	TaskID int64
	Status store.TaskStatus
	Error  *string
}
