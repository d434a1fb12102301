package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InsertFailLog records a failed attempt (or a terminal max-attempts-exceeded
// entry) for a run.
func (s *Store) InsertFailLog(ctx context.Context, f FailLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fail_log
			(run_id, persona_uuid, model_id, attempt, error_kind, raw_text_snippet, prompt_snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.RunID, f.PersonaUUID.String(), f.ModelID, f.Attempt, f.ErrorKind,
		f.RawTextSnippet, f.PromptSnippet)
	if err != nil {
		return fmt.Errorf("insert fail log: %w", err)
	}
	return nil
}

// FailLogForRun returns every fail_log row for a run, newest first.
func (s *Store) FailLogForRun(ctx context.Context, runID int64) ([]FailLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, persona_uuid, model_id, attempt, error_kind,
		       raw_text_snippet, prompt_snippet, created_at
		FROM fail_log WHERE run_id = ? ORDER BY created_at DESC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fail log: %w", err)
	}
	defer rows.Close()

	var logs []FailLog
	for rows.Next() {
		var f FailLog
		var uuidStr string
		if err := rows.Scan(&f.ID, &f.RunID, &uuidStr, &f.ModelID, &f.Attempt, &f.ErrorKind,
			&f.RawTextSnippet, &f.PromptSnippet, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fail log: %w", err)
		}
		parsed, err := uuid.Parse(uuidStr)
		if err != nil {
			return nil, fmt.Errorf("parse persona uuid: %w", err)
		}
		f.PersonaUUID = parsed
		logs = append(logs, f)
	}
	return logs, rows.Err()
}

// CountFailLogByKind returns the number of fail_log rows of the given
// error_kind for a run — used to decide run-level terminal status (done vs
// partial vs failed).
func (s *Store) CountFailLogByKind(ctx context.Context, runID int64, errorKind string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM fail_log WHERE run_id = ? AND error_kind = ?
	`, runID, errorKind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count fail log by kind: %w", err)
	}
	return n, nil
}
