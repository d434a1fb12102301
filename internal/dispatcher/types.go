package dispatcher

import (
	"context"

	"github.com/google/uuid"

	"github.com/ltreme/biasbench/internal/store"
)

// Config is everything the dispatcher needs to know about the run it is
// producing work items for.
type Config struct {
	RunID               int64
	DatasetID           int64
	AttrGenerationRunID *int64
	ScaleMode           store.ScaleMode
	DualFraction        float64
	ModelName           string
	TemplateVersion     string
	MaxNewTokens        int
	IncludeRationale    bool
}

// CompletedSet is a lookup of (persona, case, scale_order) triples already
// persisted for a run, used to implement resume by skipping emitted items
// that were already produced.
type CompletedSet map[completedTriple]struct{}

type completedTriple struct {
	persona uuid.UUID
	caseID  string
	order   store.ScaleOrder
}

// NewCompletedSet builds a CompletedSet from the store's completed-keys
// query.
func NewCompletedSet(keys []store.CompletedKey) CompletedSet {
	set := make(CompletedSet, len(keys))
	for _, k := range keys {
		set[completedTriple{k.PersonaUUID, k.CaseID, k.ScaleOrder}] = struct{}{}
	}
	return set
}

func (c CompletedSet) has(personaUUID uuid.UUID, caseID string, order store.ScaleOrder) bool {
	_, ok := c[completedTriple{personaUUID, caseID, order}]
	return ok
}

// Source is the subset of *store.Store the dispatcher streams personas and
// traits from.
type Source interface {
	StreamDatasetPersonas(ctx context.Context, datasetID int64, pageSize int, fn func([]store.Persona) error) error
	ActiveTraits(ctx context.Context) ([]store.Trait, error)
	AdditionalAttributes(ctx context.Context, personaUUID uuid.UUID, attrGenerationRunID int64) (map[string]string, error)
	CountryNames(ctx context.Context) (map[int64]string, error)
}
