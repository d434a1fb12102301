package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CreatePersona inserts a new persona. Callers generate the UUID (identity
// is assigned at creation, not by the store) so that persona UUIDs can be
// referenced before the row is committed, e.g. when building counterfactual
// pairs.
func (s *Store) CreatePersona(ctx context.Context, p Persona) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personas (uuid, age, gender, education, occupation, marital_status,
			migration_status, origin_country_id, religion, sexuality)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.UUID.String(), p.Age, p.Gender, p.Education, p.Occupation, p.MaritalStatus,
		p.MigrationStatus, p.OriginCountryID, p.Religion, p.Sexuality)
	if err != nil {
		return fmt.Errorf("insert persona: %w", err)
	}
	return nil
}

// GetPersona loads a persona by UUID.
func (s *Store) GetPersona(ctx context.Context, id uuid.UUID) (*Persona, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uuid, age, gender, education, occupation, marital_status,
		       migration_status, origin_country_id, religion, sexuality, created_at
		FROM personas WHERE uuid = ?
	`, id.String())

	var p Persona
	var uuidStr string
	if err := row.Scan(&uuidStr, &p.Age, &p.Gender, &p.Education, &p.Occupation,
		&p.MaritalStatus, &p.MigrationStatus, &p.OriginCountryID, &p.Religion,
		&p.Sexuality, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("persona %s: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("scan persona: %w", err)
	}
	p.UUID = id
	return &p, nil
}

// SetAdditionalAttribute records a generated attribute (name, appearance,
// biography, …) for a persona under a specific attribute-generation run.
// The composite primary key makes repeated generation runs additive rather
// than overwriting: each run's attributes are addressable independently.
func (s *Store) SetAdditionalAttribute(ctx context.Context, a AdditionalPersonaAttribute) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO additional_persona_attributes
			(persona_uuid, attr_generation_run_id, attribute_key, value)
		VALUES (?, ?, ?, ?)
	`, a.PersonaUUID.String(), a.AttrGenerationRunID, a.AttributeKey, a.Value)
	if err != nil {
		return fmt.Errorf("set additional attribute: %w", err)
	}
	return nil
}

// AdditionalAttributes returns every generated attribute for a persona under
// a given attribute-generation run, keyed by attribute_key.
func (s *Store) AdditionalAttributes(ctx context.Context, personaUUID uuid.UUID, attrGenerationRunID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attribute_key, value FROM additional_persona_attributes
		WHERE persona_uuid = ? AND attr_generation_run_id = ?
	`, personaUUID.String(), attrGenerationRunID)
	if err != nil {
		return nil, fmt.Errorf("query additional attributes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan additional attribute: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// CreateCounterfactualLink records that cfPersonaID is source's counterfactual
// twin within dataset, differing only in changedAttribute.
func (s *Store) CreateCounterfactualLink(ctx context.Context, link CounterfactualLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO counterfactual_links
			(dataset_id, source_persona_id, cf_persona_id, changed_attribute, from_value, to_value)
		VALUES (?, ?, ?, ?, ?, ?)
	`, link.DatasetID, link.SourcePersonaID.String(), link.CfPersonaID.String(),
		link.ChangedAttribute, link.FromValue, link.ToValue)
	if err != nil {
		return fmt.Errorf("insert counterfactual link: %w", err)
	}
	return nil
}

// CounterfactualLinksForDataset returns every counterfactual pairing recorded
// for a dataset.
func (s *Store) CounterfactualLinksForDataset(ctx context.Context, datasetID int64) ([]CounterfactualLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dataset_id, source_persona_id, cf_persona_id, changed_attribute, from_value, to_value
		FROM counterfactual_links WHERE dataset_id = ?
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query counterfactual links: %w", err)
	}
	defer rows.Close()

	var links []CounterfactualLink
	for rows.Next() {
		var l CounterfactualLink
		var src, cf string
		if err := rows.Scan(&l.DatasetID, &src, &cf, &l.ChangedAttribute, &l.FromValue, &l.ToValue); err != nil {
			return nil, fmt.Errorf("scan counterfactual link: %w", err)
		}
		parsedSrc, err := uuid.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse source persona uuid: %w", err)
		}
		parsedCf, err := uuid.Parse(cf)
		if err != nil {
			return nil, fmt.Errorf("parse cf persona uuid: %w", err)
		}
		l.SourcePersonaID = parsedSrc
		l.CfPersonaID = parsedCf
		links = append(links, l)
	}
	return links, rows.Err()
}
