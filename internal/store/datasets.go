package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CreateDataset inserts a new dataset and returns it with its assigned ID.
func (s *Store) CreateDataset(ctx context.Context, name string, kind DatasetKind, config string) (*Dataset, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (name, kind, config) VALUES (?, ?, ?)
	`, name, kind, config)
	if err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get dataset id: %w", err)
	}
	return s.GetDataset(ctx, id)
}

// GetDataset loads a dataset by id.
func (s *Store) GetDataset(ctx context.Context, id int64) (*Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, config, created_at FROM datasets WHERE id = ?
	`, id)
	var d Dataset
	if err := row.Scan(&d.ID, &d.Name, &d.Kind, &d.Config, &d.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("dataset %d: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("scan dataset: %w", err)
	}
	return &d, nil
}

// DeleteDataset deletes a dataset and, via ON DELETE CASCADE, its dependent
// runs, results, and fail log entries.
func (s *Store) DeleteDataset(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	return nil
}

// AddPersonaToDataset links an existing persona to a dataset.
func (s *Store) AddPersonaToDataset(ctx context.Context, datasetID int64, personaUUID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO dataset_personas (dataset_id, persona_uuid) VALUES (?, ?)
	`, datasetID, personaUUID.String())
	if err != nil {
		return fmt.Errorf("link persona to dataset: %w", err)
	}
	return nil
}

// CountDatasetPersonas returns the number of personas belonging to a
// dataset.
func (s *Store) CountDatasetPersonas(ctx context.Context, datasetID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM dataset_personas WHERE dataset_id = ?
	`, datasetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dataset personas: %w", err)
	}
	return n, nil
}

// StreamDatasetPersonas streams personas belonging to a dataset, keyset
// paginated by persona_uuid ascending, page size pageSize (spec default
// ≈1000), so memory stays bounded regardless of dataset size. fn is called
// once per page; returning an error stops iteration.
func (s *Store) StreamDatasetPersonas(ctx context.Context, datasetID int64, pageSize int, fn func([]Persona) error) error {
	if pageSize <= 0 {
		pageSize = 1000
	}
	var after string
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT p.uuid, p.age, p.gender, p.education, p.occupation, p.marital_status,
			       p.migration_status, p.origin_country_id, p.religion, p.sexuality, p.created_at
			FROM personas p
			JOIN dataset_personas dp ON dp.persona_uuid = p.uuid
			WHERE dp.dataset_id = ? AND p.uuid > ?
			ORDER BY p.uuid ASC
			LIMIT ?
		`, datasetID, after, pageSize)
		if err != nil {
			return fmt.Errorf("query dataset personas page: %w", err)
		}

		var page []Persona
		for rows.Next() {
			var p Persona
			var uuidStr string
			if err := rows.Scan(&uuidStr, &p.Age, &p.Gender, &p.Education, &p.Occupation,
				&p.MaritalStatus, &p.MigrationStatus, &p.OriginCountryID, &p.Religion,
				&p.Sexuality, &p.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan persona: %w", err)
			}
			parsed, err := uuid.Parse(uuidStr)
			if err != nil {
				rows.Close()
				return fmt.Errorf("parse persona uuid: %w", err)
			}
			p.UUID = parsed
			page = append(page, p)
		}
		closeErr := rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate dataset personas: %w", err)
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
		after = page[len(page)-1].UUID.String()
		if len(page) < pageSize {
			return nil
		}
	}
}
