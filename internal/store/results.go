package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InsertResultsIgnoreConflicts writes a batch of results in a single
// transaction using INSERT OR IGNORE, so retried batches (after a persister
// crash or a dispatcher resume) are idempotent: a (run_id, persona_uuid,
// case_id, scale_order) triple already on disk is silently skipped rather
// than erroring or duplicating. Returns the number of rows actually
// inserted, which may be less than len(results).
func (s *Store) InsertResultsIgnoreConflicts(ctx context.Context, results []BenchmarkResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO benchmark_results
			(run_id, persona_uuid, case_id, scale_order, attempt, answer_raw,
			 rating, rating_raw, gen_time_ms, model_name, template_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range results {
		res, err := stmt.ExecContext(ctx, r.RunID, r.PersonaUUID.String(), r.CaseID, r.ScaleOrder,
			r.Attempt, r.AnswerRaw, r.Rating, r.RatingRaw, r.GenTimeMs, r.ModelName, r.TemplateVersion)
		if err != nil {
			return 0, fmt.Errorf("insert result: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// CompletedKeys returns every (persona_uuid, case_id, scale_order) triple
// already persisted for a run, for the dispatcher's resume skip-set.
func (s *Store) CompletedKeys(ctx context.Context, runID int64) ([]CompletedKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT persona_uuid, case_id, scale_order
		FROM benchmark_results WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query completed keys: %w", err)
	}
	defer rows.Close()

	var keys []CompletedKey
	for rows.Next() {
		var k CompletedKey
		var uuidStr string
		if err := rows.Scan(&uuidStr, &k.CaseID, &k.ScaleOrder); err != nil {
			return nil, fmt.Errorf("scan completed key: %w", err)
		}
		parsed, err := uuid.Parse(uuidStr)
		if err != nil {
			return nil, fmt.Errorf("parse persona uuid: %w", err)
		}
		k.PersonaUUID = parsed
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CountDistinctCompleted returns the number of distinct (persona_uuid,
// case_id, scale_order) triples persisted for a run — the progress
// registry's done-count, refreshed at most every 30s per spec.
func (s *Store) CountDistinctCompleted(ctx context.Context, runID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT DISTINCT persona_uuid, case_id, scale_order
			FROM benchmark_results WHERE run_id = ?
		)
	`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count distinct completed: %w", err)
	}
	return n, nil
}

// ResultsForRun streams all results for a run in (persona_uuid, case_id,
// scale_order) order, page by page, for reporting/aggregation consumers.
func (s *Store) ResultsForRun(ctx context.Context, runID int64, pageSize int, fn func([]BenchmarkResult) error) error {
	if pageSize <= 0 {
		pageSize = 1000
	}
	offset := 0
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT run_id, persona_uuid, case_id, scale_order, attempt, answer_raw,
			       rating, rating_raw, gen_time_ms, model_name, template_version, created_at
			FROM benchmark_results WHERE run_id = ?
			ORDER BY persona_uuid, case_id, scale_order
			LIMIT ? OFFSET ?
		`, runID, pageSize, offset)
		if err != nil {
			return fmt.Errorf("query results page: %w", err)
		}

		var page []BenchmarkResult
		for rows.Next() {
			var r BenchmarkResult
			var uuidStr string
			if err := rows.Scan(&r.RunID, &uuidStr, &r.CaseID, &r.ScaleOrder, &r.Attempt,
				&r.AnswerRaw, &r.Rating, &r.RatingRaw, &r.GenTimeMs, &r.ModelName,
				&r.TemplateVersion, &r.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan result: %w", err)
			}
			parsed, err := uuid.Parse(uuidStr)
			if err != nil {
				rows.Close()
				return fmt.Errorf("parse persona uuid: %w", err)
			}
			r.PersonaUUID = parsed
			page = append(page, r)
		}
		closeErr := rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate results: %w", err)
		}
		if closeErr != nil {
			return closeErr
		}

		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		offset += len(page)
		if len(page) < pageSize {
			return nil
		}
	}
}
