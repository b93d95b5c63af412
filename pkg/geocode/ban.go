package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
)

// featureCollection is the GeoJSON answer of BAN-like search endpoints and
// of Nominatim in geocodejson format.
type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties featureProperties `json:"properties"`
}

type featureProperties struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	HouseNumber string   `json:"housenumber"`
	Street      string   `json:"street"`
	PostCode    string   `json:"postcode"`
	City        string   `json:"city"`
	CityCode    string   `json:"citycode"`
	Score       *float64 `json:"score"`
	OSMType     string   `json:"osm_type"`

	// Nominatim nests its address details under "geocoding".
	Geocoding *featureProperties `json:"geocoding"`
}

// flatten returns the properties with the nested geocoding block merged in.
func (p featureProperties) flatten() featureProperties {
	g := p.Geocoding
	if g == nil {
		return p
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&p.ID, g.ID)
	fill(&p.Type, g.Type)
	fill(&p.Name, g.Name)
	fill(&p.HouseNumber, g.HouseNumber)
	fill(&p.Street, g.Street)
	fill(&p.PostCode, g.PostCode)
	fill(&p.City, g.City)
	fill(&p.OSMType, g.OSMType)
	p.Geocoding = nil
	return p
}

func (f feature) lonLat() (lon, lat float64, err error) {
	if len(f.Geometry.Coordinates) < 2 {
		return 0, 0, eris.New("geocode: feature without coordinates")
	}
	return f.Geometry.Coordinates[0], f.Geometry.Coordinates[1], nil
}

// AdresseProvider queries a BAN-compatible search endpoint: the national
// address base (api-adresse.data.gouv.fr) or the IGN Géoplateforme.
type AdresseProvider struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewAdresseProvider creates a provider for a BAN-compatible endpoint.
// A nil client uses a default one.
func NewAdresseProvider(name, baseURL string, hc *http.Client) *AdresseProvider {
	if hc == nil {
		hc = defaultHTTPClient()
	}
	return &AdresseProvider{name: name, baseURL: baseURL, httpClient: hc}
}

// Name implements Provider.
func (p *AdresseProvider) Name() string { return p.name }

// Geocode implements Provider. Only the best feature is considered; the
// score threshold is applied by the Chain.
func (p *AdresseProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	params := url.Values{
		"q":            {addr.Query},
		"limit":        {"1"},
		"autocomplete": {"0"},
	}
	if addr.PostCode != "" {
		params.Set("postcode", addr.PostCode)
	}
	if addr.CityCode != "" {
		params.Set("citycode", addr.CityCode)
	}

	fc, err := getFeatures(ctx, p.httpClient, p.baseURL, params)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s", p.name)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	f := fc.Features[0]
	props := f.Properties.flatten()
	r := &Result{
		Provider:   p.name,
		ProviderID: props.ID,
		Numero:     props.HouseNumber,
		CodePostal: props.PostCode,
		Commune:    props.City,
		CodeInsee:  props.CityCode,
	}
	if props.Score != nil {
		r.Score = *props.Score
	}

	switch props.Type {
	case "street":
		r.Voie = props.Name
	case "housenumber":
		r.Voie = props.Street
	case "locality":
		r.LieuDit = props.Name
	default:
		return nil, nil
	}

	if r.Longitude, r.Latitude, err = f.lonLat(); err != nil {
		return nil, eris.Wrapf(err, "geocode: %s", p.name)
	}
	return r, nil
}

// getFeatures performs a GET and decodes a GeoJSON feature collection.
func getFeatures(ctx context.Context, hc *http.Client, baseURL string, params url.Values) (*featureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("returned status %d", resp.StatusCode)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "parse response")
	}
	return &fc, nil
}
