package geocode

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/hududed/bayanlab/internal/config"
	"github.com/hududed/bayanlab/internal/resilience"
)

// New builds a Resolver from configuration. Strategies:
//
//	nominatim — free provider only (default)
//	google    — paid provider only
//	hybrid    — google first, nominatim fallback
func New(cfg config.GeocoderConfig) (Resolver, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	nominatimOpts := []NominatimOption{
		WithNominatimHTTPClient(defaultHTTPClient(timeout)),
	}
	if cfg.RateLimitRPS > 0 {
		nominatimOpts = append(nominatimOpts, WithNominatimRateLimit(cfg.RateLimitRPS))
	}
	free := NewNominatim(cfg.UserAgent, nominatimOpts...)

	paid := NewGoogle(cfg.GoogleAPIKey, WithGoogleHTTPClient(defaultHTTPClient(timeout)))

	var providers []Provider
	switch cfg.Provider {
	case "", "nominatim":
		providers = []Provider{free}
	case "google":
		if !paid.Available() {
			return nil, eris.New("geocode: google provider selected but no API key configured")
		}
		providers = []Provider{paid}
	case "hybrid":
		providers = []Provider{paid, free}
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", cfg.Provider)
	}

	retry := resilience.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		OnRetry:     resilience.RetryLogger("geocode", "resolve"),
	}
	return NewChain(providers, WithRetry(retry)), nil
}
