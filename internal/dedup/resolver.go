// Package dedup finds establishments describing the same place, picks the one
// to keep and merges the accessibility answers of the others into it.
package dedup

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/model"
	"github.com/acceslibre/erpsync/internal/textnorm"
)

// Default distance thresholds, in meters.
const (
	DefaultNearRadius = 70.0
	DefaultWideRadius = 500.0
)

var (
	// ErrAmbiguousMain is returned when no establishment of a group can be
	// kept: fewer than two members or one without accessibility answers.
	ErrAmbiguousMain = errors.New("dedup: cannot identify the main establishment")
	// ErrNeedsManualInspection marks a pair that may be duplicates but cannot
	// be merged automatically.
	ErrNeedsManualInspection = errors.New("dedup: needs manual inspection")
	// ErrNotDuplicates marks a pair sharing a name but not a place.
	ErrNotDuplicates = errors.New("dedup: not duplicates")
)

// Resolver looks up duplicate candidates in a repository.
type Resolver struct {
	repo erp.Repository
	near float64
	wide float64
	log  *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRadii overrides the near and wide radii. Non-positive values keep the
// defaults.
func WithRadii(near, wide float64) Option {
	return func(r *Resolver) {
		if near > 0 {
			r.near = near
		}
		if wide > 0 {
			r.wide = wide
		}
	}
}

// NewResolver creates a Resolver over repo.
func NewResolver(repo erp.Repository, opts ...Option) *Resolver {
	r := &Resolver{
		repo: repo,
		near: DefaultNearRadius,
		wide: DefaultWideRadius,
		log:  zap.L().With(zap.String("component", "dedup")),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NameVariants returns the lower-cased spellings under which nom is looked
// up: as is, with dashes as spaces, and the "mairie - X" / "mairie de X"
// synonym.
func NameVariants(nom string) []string {
	lower := strings.ToLower(textnorm.CleanName(nom))
	if lower == "" {
		return nil
	}
	variants := []string{lower}
	add := func(s string) {
		for _, v := range variants {
			if v == s {
				return
			}
		}
		variants = append(variants, s)
	}
	add(strings.ReplaceAll(lower, "-", " "))
	switch {
	case strings.HasPrefix(lower, "mairie - "):
		add("mairie de " + strings.TrimPrefix(lower, "mairie - "))
	case strings.HasPrefix(lower, "mairie de "):
		add("mairie - " + strings.TrimPrefix(lower, "mairie de "))
	}
	return variants
}

// FindCandidates returns the published establishments with accessibility
// answers that share the municipality and a name variant of e, within the
// wide radius, nearest first.
func (r *Resolver) FindCandidates(ctx context.Context, e *model.Establishment) ([]model.Establishment, error) {
	if e.Geom == nil || !e.Geom.Valid() {
		return nil, nil
	}
	f := erp.Filter{
		Noms:              NameVariants(e.Nom),
		ExcludeID:         e.ID,
		Published:         erp.Published(true),
		WithAccessibility: true,
		Near:              e.Geom,
		Radius:            r.wide,
	}
	if len(f.Noms) == 0 {
		return nil, nil
	}
	switch {
	case e.CommuneID != nil:
		f.CommuneID = *e.CommuneID
	case e.Commune != "":
		f.Commune = e.Commune
	default:
		return nil, nil
	}

	found, err := r.repo.Find(ctx, f)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: find candidates")
	}
	sort.SliceStable(found, func(i, j int) bool {
		return e.Geom.DistanceMeters(*found[i].Geom) < e.Geom.DistanceMeters(*found[j].Geom)
	})
	return found, nil
}

// FindMainAndDuplicates picks the establishment to keep among es. The first
// rule that singles out one member wins: the only one authored by a human,
// the only one claimed by its owner, the highest completion rate, and
// finally the oldest.
func FindMainAndDuplicates(es []model.Establishment) (model.Establishment, []model.Establishment, error) {
	if len(es) < 2 {
		return model.Establishment{}, nil, ErrAmbiguousMain
	}
	for _, e := range es {
		if !e.HasAccessibility {
			return model.Establishment{}, nil, ErrAmbiguousMain
		}
	}

	if main, dups, ok := single(es, func(e model.Establishment) bool { return e.UserType.Human() }); ok {
		return main, dups, nil
	}
	if main, dups, ok := single(es, func(e model.Establishment) bool { return e.UserType.Owner() }); ok {
		return main, dups, nil
	}

	byRate := append([]model.Establishment(nil), es...)
	sort.SliceStable(byRate, func(i, j int) bool { return byRate[i].CompletionRate > byRate[j].CompletionRate })
	if byRate[0].CompletionRate != byRate[1].CompletionRate {
		return byRate[0], byRate[1:], nil
	}

	byAge := append([]model.Establishment(nil), es...)
	sort.SliceStable(byAge, func(i, j int) bool { return byAge[i].CreatedAt.Before(byAge[j].CreatedAt) })
	return byAge[0], byAge[1:], nil
}

// single returns the only member matching pred and the others, in order.
func single(es []model.Establishment, pred func(model.Establishment) bool) (model.Establishment, []model.Establishment, bool) {
	idx := -1
	for i, e := range es {
		if !pred(e) {
			continue
		}
		if idx >= 0 {
			return model.Establishment{}, nil, false
		}
		idx = i
	}
	if idx < 0 {
		return model.Establishment{}, nil, false
	}
	rest := make([]model.Establishment, 0, len(es)-1)
	rest = append(rest, es[:idx]...)
	rest = append(rest, es[idx+1:]...)
	return es[idx], rest, true
}

// CheckAutomaticMerge decides whether two same-name establishments found
// beyond the near radius can be merged without a human look. It returns nil
// when they can.
func CheckAutomaticMerge(a, b model.Establishment) error {
	if !textnorm.EqualFold(a.Activite, b.Activite) {
		return ErrNeedsManualInspection
	}
	if !textnorm.EqualFold(a.Voie, b.Voie) {
		return ErrNotDuplicates
	}
	na, nb := strings.TrimSpace(a.Numero), strings.TrimSpace(b.Numero)
	if na == "" || nb == "" || strings.EqualFold(na, nb) {
		return nil
	}
	return ErrNeedsManualInspection
}
