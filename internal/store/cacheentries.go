package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PutCacheEntry upserts a content-addressed derived aggregate for a run.
func (s *Store) PutCacheEntry(ctx context.Context, e CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (run_id, kind, key, payload_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (run_id, kind, key) DO UPDATE SET
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at
	`, e.RunID, e.Kind, e.Key, e.PayloadJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// GetCacheEntry loads a cache entry by its content-address key, reporting
// (nil, nil) on a miss so callers can distinguish "not cached" from a
// genuine error.
func (s *Store) GetCacheEntry(ctx context.Context, runID int64, kind, key string) (*CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, kind, key, payload_json, updated_at
		FROM cache_entries WHERE run_id = ? AND kind = ? AND key = ?
	`, runID, kind, key)
	var e CacheEntry
	if err := row.Scan(&e.RunID, &e.Kind, &e.Key, &e.PayloadJSON, &e.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}
	return &e, nil
}

// InvalidateCacheEntries removes every cache entry for a run — called when
// new results land for that run so stale aggregates can't be served.
func (s *Store) InvalidateCacheEntries(ctx context.Context, runID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("invalidate cache entries: %w", err)
	}
	return nil
}
