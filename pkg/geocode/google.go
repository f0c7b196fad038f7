package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/hududed/bayanlab/internal/resilience"
)

const defaultGoogleURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleProvider geocodes via the paid Google Geocoding API.
type GoogleProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// GoogleOption configures the Google provider.
type GoogleOption func(*GoogleProvider)

// WithGoogleBaseURL overrides the API endpoint (used in tests).
func WithGoogleBaseURL(u string) GoogleOption {
	return func(p *GoogleProvider) { p.baseURL = u }
}

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) { p.httpClient = hc }
}

// NewGoogle creates the paid provider. An empty key leaves the provider
// unavailable, which the chain skips.
func NewGoogle(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		baseURL:    defaultGoogleURL,
		apiKey:     apiKey,
		httpClient: defaultHTTPClient(0),
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

// googleResponse is the Google Geocoding API JSON response.
type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Resolve implements Provider.
func (p *GoogleProvider) Resolve(ctx context.Context, addr AddressInput) (*Result, error) {
	if addr.Empty() {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"address": {formatOneLine(addr)},
		"key":     {p.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: google returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var gr googleResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch gr.Status {
	case "OK":
		// fall through to result handling
	case "ZERO_RESULTS":
		return &Result{Matched: false, Source: p.Name()}, nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return nil, resilience.NewTransientError(
			eris.Errorf("geocode: google status %s", gr.Status), 0)
	default:
		return nil, eris.Errorf("geocode: google status %s", gr.Status)
	}

	if len(gr.Results) == 0 {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	loc := gr.Results[0].Geometry.Location
	return &Result{
		Latitude:  loc.Lat,
		Longitude: loc.Lng,
		Source:    p.Name(),
		Matched:   true,
	}, nil
}
