// Package erp persists establishments, their accessibility answers and their
// external source links.
package erp

import (
	"context"

	"github.com/acceslibre/erpsync/internal/model"
)

// Repository is the storage contract of the import pipeline and the
// maintenance sweep. Lookups that find nothing return nil, nil.
type Repository interface {
	// WithTx runs fn against a repository bound to one transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error

	Get(ctx context.Context, id int64) (*model.Establishment, error)
	// BySource returns the establishment linked to (source, sourceID),
	// preferring a published one.
	BySource(ctx context.Context, source, sourceID string) (*model.Establishment, error)
	Find(ctx context.Context, f Filter) ([]model.Establishment, error)
	ActivityExists(ctx context.Context, nom string) (bool, error)
	// SweepIDs lists published or permanently closed establishments, oldest first.
	SweepIDs(ctx context.Context) ([]int64, error)

	Create(ctx context.Context, r *model.Record) (*model.Establishment, error)
	Update(ctx context.Context, e *model.Establishment) error
	SetPublished(ctx context.Context, id int64, published bool) error
	Delete(ctx context.Context, id int64) error

	// ReplaceSourceLink makes (source, sourceID) point at id, dropping the
	// previous link of either side.
	ReplaceSourceLink(ctx context.Context, id int64, source, sourceID string) error
	EnsureAccessibility(ctx context.Context, id int64) error
	SetCompletionRate(ctx context.Context, id int64, rate int) error
}

// Filter narrows Find. Zero fields do not filter.
type Filter struct {
	// Noms matches any of the names, case-insensitively.
	Noms []string
	// Activite matches the activity name, case-insensitively.
	Activite string
	// Address matches every non-empty part, case-insensitively.
	Address *model.Address
	// ExactAddress changes how Address matches: the numero must be equal,
	// an empty numero matching only establishments without one, and the
	// voie or the lieu-dit must match when either is given.
	ExactAddress bool

	CodePostal string
	Commune    string
	CommuneID  int64

	ExcludeID     int64
	ExcludeSource string
	// MetadataPath and MetadataValue match a text value nested in metadata,
	// e.g. ["service_public", "ancien_code_pivot"].
	MetadataPath  []string
	MetadataValue string

	Published         *bool
	WithAccessibility bool

	// Near restricts to establishments within Radius meters, nearest first.
	Near   *model.Point
	Radius float64

	Limit int
}

// Published is a Filter helper.
func Published(v bool) *bool { return &v }
