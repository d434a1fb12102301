package dispatcher

import (
	"context"
	"fmt"

	"github.com/ltreme/biasbench/internal/promptfactory"
	"github.com/ltreme/biasbench/internal/store"
)

const personaPageSize = 1000

// Dispatcher produces the (persona, trait, scale_order) work-item sequence
// for one benchmark run.
type Dispatcher struct {
	src       Source
	cfg       Config
	completed CompletedSet
}

// New builds a Dispatcher. completed may be nil for a fresh run with
// nothing to skip.
func New(src Source, cfg Config, completed CompletedSet) *Dispatcher {
	if completed == nil {
		completed = CompletedSet{}
	}
	return &Dispatcher{src: src, cfg: cfg, completed: completed}
}

// Stream emits WorkItems on the returned channel until the dataset is
// exhausted, ctx is cancelled, or an error occurs. The error channel
// receives exactly one value (nil on clean exhaustion) once the item
// channel closes.
func (d *Dispatcher) Stream(ctx context.Context) (<-chan promptfactory.WorkItem, <-chan error) {
	items := make(chan promptfactory.WorkItem)
	errc := make(chan error, 1)

	go func() {
		defer close(items)
		errc <- d.run(ctx, items)
	}()

	return items, errc
}

func (d *Dispatcher) run(ctx context.Context, items chan<- promptfactory.WorkItem) error {
	traits, err := d.src.ActiveTraits(ctx)
	if err != nil {
		return fmt.Errorf("load active traits: %w", err)
	}
	if len(traits) == 0 {
		return nil
	}

	countries, err := d.src.CountryNames(ctx)
	if err != nil {
		return fmt.Errorf("load country names: %w", err)
	}

	attrRunID := int64(0)
	if d.cfg.AttrGenerationRunID != nil {
		attrRunID = *d.cfg.AttrGenerationRunID
	}

	return d.src.StreamDatasetPersonas(ctx, d.cfg.DatasetID, personaPageSize, func(page []store.Persona) error {
		for _, persona := range page {
			var attrs map[string]string
			if d.cfg.AttrGenerationRunID != nil {
				a, err := d.src.AdditionalAttributes(ctx, persona.UUID, attrRunID)
				if err != nil {
					return fmt.Errorf("load additional attributes: %w", err)
				}
				attrs = a
			}
			personaCtx := buildPersonaContext(persona, attrs, countries)

			for _, trait := range traits {
				if err := d.emitForTrait(ctx, items, persona, personaCtx, trait); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (d *Dispatcher) emitForTrait(
	ctx context.Context,
	items chan<- promptfactory.WorkItem,
	persona store.Persona,
	personaCtx promptfactory.PersonaContext,
	trait store.Trait,
) error {
	caseID := trait.ID
	frac := unitFraction(d.cfg.RunID, persona.UUID, trait.ID)

	var primary, secondary store.ScaleOrder
	emitSecondary := false

	switch d.cfg.ScaleMode {
	case store.ScaleModeIn:
		primary = store.ScaleOrderIn
	case store.ScaleModeRev:
		primary = store.ScaleOrderRev
		secondary = store.ScaleOrderIn
		emitSecondary = frac < d.cfg.DualFraction
	default: // dual
		primary = store.ScaleOrderIn
		secondary = store.ScaleOrderRev
		emitSecondary = frac < d.cfg.DualFraction
	}

	caseTemplate := ""
	if trait.CaseTemplate != nil {
		caseTemplate = *trait.CaseTemplate
	}

	if err := d.emitOne(ctx, items, persona, personaCtx, trait, caseID, caseTemplate, primary); err != nil {
		return err
	}
	if emitSecondary {
		if err := d.emitOne(ctx, items, persona, personaCtx, trait, caseID, caseTemplate, secondary); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) emitOne(
	ctx context.Context,
	items chan<- promptfactory.WorkItem,
	persona store.Persona,
	personaCtx promptfactory.PersonaContext,
	trait store.Trait,
	caseID, caseTemplate string,
	order store.ScaleOrder,
) error {
	if d.completed.has(persona.UUID, caseID, order) {
		return nil
	}

	item := promptfactory.WorkItem{
		PersonaUUID:      persona.UUID.String(),
		PersonaContext:   personaCtx,
		CaseID:           caseID,
		Adjective:        trait.Adjective,
		CaseTemplate:     caseTemplate,
		ScaleOrder:       toFactoryScaleOrder(order),
		Attempt:          1,
		ModelName:        d.cfg.ModelName,
		TemplateVersion:  d.cfg.TemplateVersion,
		BenchmarkRunID:   d.cfg.RunID,
		MaxNewTokens:     d.cfg.MaxNewTokens,
		IncludeRationale: d.cfg.IncludeRationale,
	}

	select {
	case items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildPersonaContext(p store.Persona, attrs map[string]string, countries map[int64]string) promptfactory.PersonaContext {
	origin := ""
	if p.OriginCountryID != nil {
		origin = countries[*p.OriginCountryID]
	}
	return promptfactory.PersonaContext{
		Name:            attrs["name"],
		Appearance:      attrs["appearance"],
		Biography:       attrs["biography"],
		Age:             p.Age,
		Gender:          p.Gender,
		Education:       p.Education,
		Occupation:      p.Occupation,
		MaritalStatus:   p.MaritalStatus,
		MigrationStatus: p.MigrationStatus,
		OriginCountry:   origin,
		Religion:        p.Religion,
		Sexuality:       p.Sexuality,
	}
}

func toFactoryScaleOrder(o store.ScaleOrder) promptfactory.ScaleOrder {
	if o == store.ScaleOrderRev {
		return promptfactory.ScaleOrderRev
	}
	return promptfactory.ScaleOrderIn
}
