package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SubmitTask enqueues a new task in TaskStatusQueued and returns it with its
// assigned ID.
func (s *Store) SubmitTask(ctx context.Context, n NewTask) (*TaskQueueRow, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO task_queue (task_type, label, status, position, depends_on, config)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.TaskType, n.Label, TaskStatusQueued, n.Position, n.DependsOn, n.Config)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get task id: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (*TaskQueueRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_type, label, status, position, depends_on, config,
		       result_run_id, error, created_at, started_at, finished_at
		FROM task_queue WHERE id = ?
	`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task %d: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return t, nil
}

func scanTask(row *sql.Row) (*TaskQueueRow, error) {
	var t TaskQueueRow
	if err := row.Scan(&t.ID, &t.TaskType, &t.Label, &t.Status, &t.Position, &t.DependsOn,
		&t.Config, &t.ResultRunID, &t.Error, &t.CreatedAt, &t.StartedAt, &t.FinishedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// NextQueuedTask picks the oldest eligible task: queued, and either with no
// dependency or whose dependency has already completed. Dependencies that
// failed or were cancelled make the dependent ineligible forever — the
// caller is expected to cascade-cancel it instead of leaving it queued.
func (s *Store) NextQueuedTask(ctx context.Context) (*TaskQueueRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.task_type, t.label, t.status, t.position, t.depends_on, t.config,
		       t.result_run_id, t.error, t.created_at, t.started_at, t.finished_at
		FROM task_queue t
		LEFT JOIN task_queue d ON d.id = t.depends_on
		WHERE t.status = ?
		  AND (t.depends_on IS NULL OR d.status = ?)
		ORDER BY t.created_at ASC
		LIMIT 1
	`, TaskStatusQueued, TaskStatusCompleted)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan next queued task: %w", err)
	}
	return t, nil
}

// BlockedDependents returns queued tasks whose dependency is in a terminal
// non-completed state (failed or cancelled) — these must be cascade-cancelled
// rather than ever being picked up.
func (s *Store) BlockedDependents(ctx context.Context) ([]TaskQueueRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.task_type, t.label, t.status, t.position, t.depends_on, t.config,
		       t.result_run_id, t.error, t.created_at, t.started_at, t.finished_at
		FROM task_queue t
		JOIN task_queue d ON d.id = t.depends_on
		WHERE t.status = ? AND d.status IN (?, ?)
	`, TaskStatusQueued, TaskStatusFailed, TaskStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("query blocked dependents: %w", err)
	}
	defer rows.Close()

	var tasks []TaskQueueRow
	for rows.Next() {
		var t TaskQueueRow
		if err := rows.Scan(&t.ID, &t.TaskType, &t.Label, &t.Status, &t.Position, &t.DependsOn,
			&t.Config, &t.ResultRunID, &t.Error, &t.CreatedAt, &t.StartedAt, &t.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan blocked dependent: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkTaskRunning transitions a task to running and stamps started_at.
func (s *Store) MarkTaskRunning(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE task_queue SET status = ?, started_at = ? WHERE id = ?
	`, TaskStatusRunning, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}
	return nil
}

// FinishTask transitions a task to a terminal status (completed, failed, or
// cancelled), stamping finished_at and recording the resulting run id and/or
// error message.
func (s *Store) FinishTask(ctx context.Context, id int64, status TaskStatus, resultRunID *int64, errMsg *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE task_queue SET status = ?, result_run_id = ?, error = ?, finished_at = ? WHERE id = ?
	`, status, resultRunID, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	return nil
}

// RecoverOrphans resets every task stuck in running back to queued — called
// once at executor startup, since a process restart can only have left a
// running task orphaned, never legitimately still in progress.
func (s *Store) RecoverOrphans(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_queue SET status = ?, started_at = NULL WHERE status = ?
	`, TaskStatusQueued, TaskStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("recover orphans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// CancelTask transitions a queued or running task to cancelled.
func (s *Store) CancelTask(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE task_queue SET status = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, TaskStatusCancelled, time.Now().UTC(), id, TaskStatusQueued, TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	return nil
}

// ListTasks returns every task ordered by created_at ascending — the
// CLI/status-surface listing.
func (s *Store) ListTasks(ctx context.Context) ([]TaskQueueRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_type, label, status, position, depends_on, config,
		       result_run_id, error, created_at, started_at, finished_at
		FROM task_queue ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskQueueRow
	for rows.Next() {
		var t TaskQueueRow
		if err := rows.Scan(&t.ID, &t.TaskType, &t.Label, &t.Status, &t.Position, &t.DependsOn,
			&t.Config, &t.ResultRunID, &t.Error, &t.CreatedAt, &t.StartedAt, &t.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
