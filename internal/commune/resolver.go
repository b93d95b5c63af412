// Package commune maintains the municipality reference: lookup for
// establishments, list sync and contour import.
package commune

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/acceslibre/erpsync/internal/model"
	"github.com/acceslibre/erpsync/internal/textnorm"
)

// Store reads and writes the municipality reference.
type Store interface {
	ByCode(ctx context.Context, code string) (*model.Municipality, error)
	ByPostalCode(ctx context.Context, postalCode string) ([]model.Municipality, error)
	ByFoldedName(ctx context.Context, folded string) ([]model.Municipality, error)
}

// Query carries what an establishment knows about its municipality.
type Query struct {
	CodeInsee  string
	CodePostal string
	Nom        string
}

// Resolver finds the municipality of an establishment.
type Resolver interface {
	Resolve(ctx context.Context, q Query) (*model.Municipality, error)
}

// StoreResolver resolves against a Store. Lookup order: INSEE code, parent
// of an arrondissement, postal code, then exact folded name. A miss is nil, nil.
type StoreResolver struct {
	store Store
}

// NewResolver creates a StoreResolver.
func NewResolver(store Store) *StoreResolver {
	return &StoreResolver{store: store}
}

// Resolve implements Resolver.
func (r *StoreResolver) Resolve(ctx context.Context, q Query) (*model.Municipality, error) {
	if q.CodeInsee != "" {
		m, err := r.store.ByCode(ctx, q.CodeInsee)
		if err != nil {
			return nil, eris.Wrap(err, "commune: resolve by code")
		}
		if m != nil {
			return m, nil
		}

		if arr, ok := LookupArrondissement(q.CodeInsee); ok {
			m, err := r.store.ByCode(ctx, arr.ParentCode)
			if err != nil {
				return nil, eris.Wrap(err, "commune: resolve arrondissement")
			}
			if m != nil {
				return m, nil
			}
			if m, err := r.byName(ctx, arr.ParentName); err != nil || m != nil {
				return m, err
			}
		}
	}

	if q.CodePostal != "" {
		candidates, err := r.store.ByPostalCode(ctx, q.CodePostal)
		if err != nil {
			return nil, eris.Wrap(err, "commune: resolve by postal code")
		}
		if m := pick(candidates, q.Nom); m != nil {
			return m, nil
		}
	}

	if q.Nom != "" {
		return r.byName(ctx, q.Nom)
	}
	return nil, nil
}

func (r *StoreResolver) byName(ctx context.Context, nom string) (*model.Municipality, error) {
	candidates, err := r.store.ByFoldedName(ctx, textnorm.Fold(nom))
	if err != nil {
		return nil, eris.Wrap(err, "commune: resolve by name")
	}
	return pick(candidates, ""), nil
}

// pick prefers a candidate whose name matches nom, then the first one that
// is not obsolete, then the first one.
func pick(candidates []model.Municipality, nom string) *model.Municipality {
	if len(candidates) == 0 {
		return nil
	}
	if nom != "" {
		for i := range candidates {
			if textnorm.EqualFold(candidates[i].Nom, nom) {
				return &candidates[i]
			}
		}
	}
	for i := range candidates {
		if !candidates[i].Obsolete {
			return &candidates[i]
		}
	}
	return &candidates[0]
}
