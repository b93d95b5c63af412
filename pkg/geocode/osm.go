package geocode

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
)

// osmScore is assigned to Nominatim matches, which carry no relevance score.
const osmScore = 1.0

// OSMProvider queries a Nominatim search endpoint in geocodejson format.
// Only nodes of type house or hamlet are accepted, and no INSEE code is
// returned.
type OSMProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewOSMProvider creates a Nominatim provider. A nil client uses a default one.
func NewOSMProvider(baseURL, userAgent string, hc *http.Client) *OSMProvider {
	if hc == nil {
		hc = defaultHTTPClient()
	}
	if userAgent != "" {
		hc = withUserAgent(hc, userAgent)
	}
	return &OSMProvider{baseURL: baseURL, httpClient: hc}
}

// Name implements Provider.
func (p *OSMProvider) Name() string { return ProviderOSM }

// Geocode implements Provider.
func (p *OSMProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	params := url.Values{
		"q":              {addr.Query},
		"format":         {"geocodejson"},
		"addressdetails": {"1"},
	}

	fc, err := getFeatures(ctx, p.httpClient, p.baseURL, params)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: osm")
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	f := fc.Features[0]
	props := f.Properties.flatten()
	if props.OSMType != "node" {
		return nil, nil
	}

	r := &Result{
		Provider:   ProviderOSM,
		Numero:     props.HouseNumber,
		CodePostal: props.PostCode,
		Commune:    props.City,
		Score:      osmScore,
	}
	switch props.Type {
	case "house":
		r.Voie = props.Street
	case "hamlet":
		r.LieuDit = props.Name
	default:
		return nil, nil
	}

	if r.Longitude, r.Latitude, err = f.lonLat(); err != nil {
		return nil, eris.Wrap(err, "geocode: osm")
	}
	return r, nil
}

// withUserAgent returns a client that sets the User-Agent header, which
// Nominatim's usage policy requires.
func withUserAgent(hc *http.Client, ua string) *http.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *hc
	clone.Transport = userAgentTransport{base: base, ua: ua}
	return &clone
}

type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.ua)
	return t.base.RoundTrip(req)
}
