package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertTrait inserts or replaces a trait definition.
func (s *Store) UpsertTrait(ctx context.Context, t Trait) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO traits (id, adjective, case_template, category, valence, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Adjective, t.CaseTemplate, t.Category, t.Valence, t.IsActive)
	if err != nil {
		return fmt.Errorf("upsert trait: %w", err)
	}
	return nil
}

// GetTrait loads a single trait by id.
func (s *Store) GetTrait(ctx context.Context, id string) (*Trait, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, adjective, case_template, category, valence, is_active
		FROM traits WHERE id = ?
	`, id)
	var t Trait
	if err := row.Scan(&t.ID, &t.Adjective, &t.CaseTemplate, &t.Category, &t.Valence, &t.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("trait %s: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("scan trait: %w", err)
	}
	return &t, nil
}

// ActiveTraitCount returns the number of active traits — used by the
// progress registry to estimate a run's total without loading every trait.
func (s *Store) ActiveTraitCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM traits WHERE is_active = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active traits: %w", err)
	}
	return n, nil
}

// ActiveTraits returns every trait with is_active = true, ordered by id for
// deterministic case ordering.
func (s *Store) ActiveTraits(ctx context.Context) ([]Trait, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, adjective, case_template, category, valence, is_active
		FROM traits WHERE is_active = 1 ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query active traits: %w", err)
	}
	defer rows.Close()

	var traits []Trait
	for rows.Next() {
		var t Trait
		if err := rows.Scan(&t.ID, &t.Adjective, &t.CaseTemplate, &t.Category, &t.Valence, &t.IsActive); err != nil {
			return nil, fmt.Errorf("scan trait: %w", err)
		}
		traits = append(traits, t)
	}
	return traits, rows.Err()
}
