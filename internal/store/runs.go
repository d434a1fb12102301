package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateBenchmarkRun inserts a new run in RunStatusQueued and returns it with
// its assigned ID.
func (s *Store) CreateBenchmarkRun(ctx context.Context, n NewBenchmarkRun) (*BenchmarkRun, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO benchmark_runs
			(dataset_id, model_id, batch_size, max_attempts, include_rationale,
			 system_prompt, scale_mode, dual_fraction, max_new_tokens, attrgen_run_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.DatasetID, n.ModelID, n.BatchSize, n.MaxAttempts, n.IncludeRationale,
		n.SystemPrompt, n.ScaleMode, n.DualFraction, n.MaxNewTokens, n.AttrGenerationRun, RunStatusQueued)
	if err != nil {
		return nil, fmt.Errorf("insert benchmark run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get run id: %w", err)
	}
	return s.GetBenchmarkRun(ctx, id)
}

// GetBenchmarkRun loads a run by id.
func (s *Store) GetBenchmarkRun(ctx context.Context, id int64) (*BenchmarkRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, dataset_id, model_id, batch_size, max_attempts, include_rationale,
		       system_prompt, scale_mode, dual_fraction, max_new_tokens, attrgen_run_id, status, error, created_at
		FROM benchmark_runs WHERE id = ?
	`, id)
	var r BenchmarkRun
	if err := row.Scan(&r.ID, &r.DatasetID, &r.ModelID, &r.BatchSize, &r.MaxAttempts,
		&r.IncludeRationale, &r.SystemPrompt, &r.ScaleMode, &r.DualFraction, &r.MaxNewTokens,
		&r.AttrGenerationRun, &r.Status, &r.Error, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("benchmark run %d: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("scan benchmark run: %w", err)
	}
	return &r, nil
}

// SetRunStatus transitions a run to status, optionally recording an error
// message (done/partial/failed terminal states).
func (s *Store) SetRunStatus(ctx context.Context, runID int64, status RunStatus, errMsg *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE benchmark_runs SET status = ?, error = ? WHERE id = ?
	`, status, errMsg, runID)
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	return nil
}
