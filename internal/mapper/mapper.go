// Package mapper turns raw dataset rows into canonical records. Each source
// dataset has its own Mapper; the importer selects one by id.
package mapper

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/model"
)

// Mapper ids.
const (
	IDVaccination   = "vaccination"
	IDGendarmerie   = "gendarmerie"
	IDGeneric       = "generic"
	IDNestenn       = "nestenn"
	IDServicePublic = "service-public"
	IDTypeform      = "typeform"
)

// DefaultTakeoverRadius is the distance in meters within which a gendarmerie
// unit takes over an establishment imported from another source.
const DefaultTakeoverRadius = 2000.0

// Defaults carries the per-run settings a mapper applies to every row.
type Defaults struct {
	// Activite is the activity assigned when the row has none.
	Activite string
	// Source overrides the source of generic datasets.
	Source     string
	Today      time.Time
	EnrichOnly bool
	// TakeoverRadius bounds the gendarmerie takeover lookup, in meters.
	TakeoverRadius float64
}

func (d Defaults) today() time.Time {
	if d.Today.IsZero() {
		return time.Now()
	}
	return d.Today
}

func (d Defaults) takeoverRadius() float64 {
	if d.TakeoverRadius > 0 {
		return d.TakeoverRadius
	}
	return DefaultTakeoverRadius
}

// Outcome is the result of mapping one row: a Candidate, Skipped or
// Unpublished.
type Outcome interface {
	outcome()
}

// Candidate is a record to validate and persist. Existing is set when the
// row updates a stored establishment; Sources lists the links to point at
// the persisted establishment.
type Candidate struct {
	Record   model.Record
	Existing *model.Establishment
	Sources  []model.SourceLink
}

// Skipped is a row left out of the import. NoRecord marks rows that never
// produced an establishment, such as an unmapped activity.
type Skipped struct {
	Reason   string
	NoRecord bool
}

// Unpublished is a closed row whose previously imported establishment was
// taken offline.
type Unpublished struct {
	Establishment model.Establishment
	Reason        string
}

func (Candidate) outcome()   {}
func (Skipped) outcome()     {}
func (Unpublished) outcome() {}

// Mapper maps one raw row. Lookups and the unpublishing of closed records go
// through repo so they share the caller's transaction. Per-row failures are
// returned as model errors.
type Mapper interface {
	Process(ctx context.Context, repo erp.Repository, row fetcher.RawRow, d Defaults) (Outcome, error)
}

var registry = map[string]Mapper{
	IDVaccination:   Vaccination{},
	IDGendarmerie:   Gendarmerie{},
	IDGeneric:       Generic{},
	IDNestenn:       Generic{Source: model.SourceNestenn, Nestenn: true},
	IDServicePublic: ServicePublic{},
	IDTypeform:      Typeform{},
}

// Get returns the mapper registered under id.
func Get(id string) (Mapper, error) {
	m, ok := registry[id]
	if !ok {
		return nil, eris.Errorf("mapper: unknown mapper %q", id)
	}
	return m, nil
}

// IDs lists the registered mapper ids in order.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// closeOut handles a row the source flags as closed or excluded. A record
// previously imported under the same identifier is unpublished.
func closeOut(ctx context.Context, repo erp.Repository, source, sourceID, reason string) (Outcome, error) {
	existing, err := repo.BySource(ctx, source, sourceID)
	if err != nil {
		return nil, &model.StorageError{Op: "lookup source", Err: err}
	}
	if existing == nil {
		return Skipped{Reason: "ÉCARTÉ: " + reason}, nil
	}
	if existing.Published {
		if err := repo.SetPublished(ctx, existing.ID, false); err != nil {
			return nil, &model.StorageError{Op: "unpublish", Err: err}
		}
		existing.Published = false
	}
	return Unpublished{Establishment: *existing, Reason: "MIS HORS LIGNE: " + reason}, nil
}

// existingBySource returns the establishment already imported under
// (source, sourceID). A permanently closed one ends the row.
func existingBySource(ctx context.Context, repo erp.Repository, source, sourceID string) (*model.Establishment, Outcome, error) {
	existing, err := repo.BySource(ctx, source, sourceID)
	if err != nil {
		return nil, nil, &model.StorageError{Op: "lookup source", Err: err}
	}
	if existing != nil && existing.PermanentlyClosed {
		return nil, Skipped{Reason: fmt.Sprintf("ÉCARTÉ: établissement définitivement fermé (pk=%d)", existing.ID), NoRecord: true}, nil
	}
	return existing, nil, nil
}

func link(source, sourceID string) []model.SourceLink {
	if sourceID == "" {
		return nil
	}
	return []model.SourceLink{{Source: source, SourceID: sourceID}}
}
