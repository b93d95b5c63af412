// Package model defines the canonical establishment record, persisted
// establishments, source links, municipalities and the failure taxonomy.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acceslibre/erpsync/internal/access"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Address holds the postal address parts of a record.
type Address struct {
	Numero     string `json:"numero,omitempty"`
	Voie       string `json:"voie,omitempty"`
	LieuDit    string `json:"lieu_dit,omitempty"`
	CodePostal string `json:"code_postal"`
	CodeInsee  string `json:"code_insee,omitempty"`
	Commune    string `json:"commune"`
}

// Record is the canonical shape every mapper produces and the validator
// normalizes.
type Record struct {
	Nom      string `json:"nom"`
	Activite string `json:"activite,omitempty"`
	Source   string `json:"source"`
	SourceID string `json:"source_id,omitempty"`
	ASPID    string `json:"asp_id,omitempty"`
	Siret    string `json:"siret,omitempty"`

	Address
	CommuneID *int64 `json:"commune_id,omitempty"`

	Telephone    string `json:"telephone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactURL   string `json:"contact_url,omitempty"`
	SiteInternet string `json:"site_internet,omitempty"`
	ImportEmail  string `json:"import_email,omitempty"`

	// Latitude and Longitude are raw coordinates supplied by the dataset,
	// consumed by validation as a geocoding fallback.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Geom            *Point `json:"geom,omitempty"`
	GeocodeProvider string `json:"geoloc_provider,omitempty"`
	BANID           string `json:"ban_id,omitempty"`

	Published         bool           `json:"published"`
	PermanentlyClosed bool           `json:"permanently_closed"`
	UserType          UserType       `json:"user_type"`
	Metadata          map[string]any `json:"metadata,omitempty"`

	Accessibility access.Answers `json:"accessibilite,omitempty"`
}

// Establishment is a persisted establishment.
type Establishment struct {
	ID   int64     `json:"id"`
	UUID uuid.UUID `json:"uuid"`
	Record

	HasAccessibility bool      `json:"has_accessibilite"`
	CompletionRate   int       `json:"completion_rate"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AddressQuery renders the free-text address sent to geocoders:
// "numero voie, lieu_dit, commune" without empty parts.
func (a Address) AddressQuery() string {
	street := a.Voie
	if a.Numero != "" && street != "" {
		street = a.Numero + " " + street
	}
	var parts []string
	for _, p := range []string{street, a.LieuDit, a.Commune} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// SourceLink ties an establishment to the identifier it carries in a source
// dataset.
type SourceLink struct {
	ID       int64  `json:"id"`
	ERPID    int64  `json:"erp_id"`
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
}

// Municipality is the canonical commune entity.
type Municipality struct {
	ID           int64    `json:"id"`
	Code         string   `json:"code_insee"`
	Nom          string   `json:"nom"`
	Departement  string   `json:"departement"`
	CodesPostaux []string `json:"code_postaux"`
	Centre       *Point   `json:"centre,omitempty"`
	Obsolete     bool     `json:"obsolete"`
	HasContour   bool     `json:"has_contour"`
}

// NormalizePostalCode trims s and left-pads 4-digit codes with a zero.
// Anything that is not 4 or 5 digits is rejected.
func NormalizePostalCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 4 && len(s) != 5 {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	if len(s) == 4 {
		s = "0" + s
	}
	return s, true
}
