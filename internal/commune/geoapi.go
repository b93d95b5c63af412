package commune

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/acceslibre/erpsync/internal/model"
	"github.com/acceslibre/erpsync/internal/resilience"
)

// DefaultGeoAPIURL is the public geo.api.gouv.fr endpoint.
const DefaultGeoAPIURL = "https://geo.api.gouv.fr"

// ErrNotFound is returned when the geo API no longer knows a commune.
var ErrNotFound = eris.New("commune: not found")

// GeoAPI reads the commune list and contours from geo.api.gouv.fr.
type GeoAPI struct {
	baseURL string
	hc      *http.Client
	retry   resilience.RetryConfig
}

// NewGeoAPI creates a GeoAPI client. An empty baseURL uses DefaultGeoAPIURL.
func NewGeoAPI(baseURL string, hc *http.Client) *GeoAPI {
	if baseURL == "" {
		baseURL = DefaultGeoAPIURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeoAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			JitterFraction: 0.25,
			OnRetry:        resilience.RetryLogger("geoapi", "get"),
		},
	}
}

type geoPoint struct {
	Coordinates []float64 `json:"coordinates"`
}

func (p *geoPoint) point() *model.Point {
	if p == nil || len(p.Coordinates) < 2 {
		return nil
	}
	return &model.Point{Lat: p.Coordinates[1], Lon: p.Coordinates[0]}
}

type geoCommune struct {
	Code            string          `json:"code"`
	Nom             string          `json:"nom"`
	CodesPostaux    []string        `json:"codesPostaux"`
	CodeDepartement string          `json:"codeDepartement"`
	Population      int             `json:"population"`
	Centre          *geoPoint       `json:"centre"`
	Contour         json.RawMessage `json:"contour"`
}

// Communes lists every current commune.
func (g *GeoAPI) Communes(ctx context.Context) ([]Commune, error) {
	params := url.Values{
		"fields": {"code,nom,codesPostaux,centre,codeDepartement,population"},
		"format": {"json"},
	}
	var list []geoCommune
	if err := g.get(ctx, "/communes", params, &list); err != nil {
		return nil, eris.Wrap(err, "commune: list communes")
	}

	out := make([]Commune, 0, len(list))
	for _, c := range list {
		if c.Code == "" {
			continue
		}
		out = append(out, Commune{
			Code:         c.Code,
			Nom:          c.Nom,
			Departement:  c.CodeDepartement,
			CodesPostaux: c.CodesPostaux,
			Population:   c.Population,
			Centre:       c.Centre.point(),
		})
	}
	return out, nil
}

// Contour fetches the contour of a commune as an EWKB multipolygon.
// Returns ErrNotFound on 404.
func (g *GeoAPI) Contour(ctx context.Context, code string) ([]byte, error) {
	params := url.Values{"fields": {"contour,centre"}, "format": {"json"}}
	var c geoCommune
	if err := g.get(ctx, "/communes/"+url.PathEscape(code), params, &c); err != nil {
		return nil, err
	}
	if len(c.Contour) == 0 || string(c.Contour) == "null" {
		return nil, eris.Errorf("commune: %s has no contour", code)
	}
	return ContourFromGeoJSON(c.Contour)
}

func (g *GeoAPI) get(ctx context.Context, path string, params url.Values, dst any) error {
	resp, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "build request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := g.hc.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			resp.Body.Close() //nolint:errcheck
			return nil, resilience.NewTransientError(eris.Errorf("returned status %d", resp.StatusCode), resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("commune: geo api returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return eris.Wrap(err, "commune: decode geo api response")
	}
	return nil
}
