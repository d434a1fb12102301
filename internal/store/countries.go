package store

import (
	"context"
	"fmt"
)

// CountryNames returns every country id -> German display name, for the
// prompt factory's persona-context rendering. Small and static enough to
// load in one query and cache in the caller.
func (s *Store) CountryNames(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name_de FROM countries`)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// UpsertCountry inserts or updates a country's display name.
func (s *Store) UpsertCountry(ctx context.Context, id int64, nameDE string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO countries (id, name_de) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name_de = excluded.name_de
	`, id, nameDE)
	if err != nil {
		return fmt.Errorf("upsert country: %w", err)
	}
	return nil
}
