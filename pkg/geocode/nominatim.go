package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/hududed/bayanlab/internal/resilience"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimProvider geocodes via the free OpenStreetMap Nominatim API.
// The usage policy allows at most one request per second, so the provider
// carries its own limiter; callers sharing one instance share the gate.
type NominatimProvider struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NominatimOption configures the Nominatim provider.
type NominatimOption func(*NominatimProvider)

// WithNominatimBaseURL overrides the API endpoint (used in tests).
func WithNominatimBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) { p.baseURL = u }
}

// WithNominatimHTTPClient sets a custom HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) { p.httpClient = hc }
}

// WithNominatimRateLimit sets the requests-per-second limit.
func WithNominatimRateLimit(rps float64) NominatimOption {
	return func(p *NominatimProvider) { p.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewNominatim creates the free provider with the given User-Agent
// (required by the Nominatim usage policy).
func NewNominatim(userAgent string, opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:    defaultNominatimURL,
		userAgent:  userAgent,
		httpClient: defaultHTTPClient(0),
		limiter:    rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return true }

// nominatimResult is one entry of the Nominatim search response.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve implements Provider using a structured Nominatim query.
func (p *NominatimProvider) Resolve(ctx context.Context, addr AddressInput) (*Result, error) {
	if addr.Empty() {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"format":       {"json"},
		"limit":        {"1"},
		"countrycodes": {"us"},
	}
	if addr.Street != "" {
		params.Set("street", addr.Street)
	}
	if addr.City != "" {
		params.Set("city", addr.City)
	}
	if addr.State != "" {
		params.Set("state", addr.State)
	}
	if addr.Zip != "" {
		params.Set("postalcode", addr.Zip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(results) == 0 {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lat")
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lon")
	}

	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Source:    p.Name(),
		Matched:   true,
	}, nil
}
