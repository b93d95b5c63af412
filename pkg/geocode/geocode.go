// Package geocode resolves French postal addresses to coordinates through a
// prioritized chain of providers (BAN, IGN Géoplateforme, Nominatim).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Provider names.
const (
	ProviderBAN           = "ban"
	ProviderGeoplateforme = "geoplateforme"
	ProviderOSM           = "osm"
)

// Client geocodes a single address. An unmatched address yields nil, nil.
type Client interface {
	Geocode(ctx context.Context, addr AddressInput, opts ...CallOption) (*Result, error)
}

// Provider is a single geocoding backend. It returns nil, nil when it has
// no usable match.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
}

// AddressInput is a free-text address query with optional filters.
type AddressInput struct {
	Query    string
	PostCode string
	CityCode string
}

func (a AddressInput) empty() bool {
	return strings.TrimSpace(a.Query) == ""
}

// Result holds the address parts and location returned by a provider.
type Result struct {
	Provider   string  `json:"provider"`
	ProviderID string  `json:"provider_id,omitempty"`
	Numero     string  `json:"numero,omitempty"`
	Voie       string  `json:"voie,omitempty"`
	LieuDit    string  `json:"lieu_dit,omitempty"`
	CodePostal string  `json:"code_postal,omitempty"`
	Commune    string  `json:"commune,omitempty"`
	CodeInsee  string  `json:"code_insee,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Score      float64 `json:"score"`
}

// CallOption tunes a single Geocode call.
type CallOption func(*callOptions)

type callOptions struct {
	startAt string
}

// WithStartAt starts the chain at the named provider and continues with the
// providers after it.
func WithStartAt(name string) CallOption {
	return func(o *callOptions) { o.startAt = name }
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
