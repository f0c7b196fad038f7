// Package geocode resolves addresses to coordinates via interchangeable
// providers: Nominatim (free, default), Google (paid), or a hybrid chain
// that prefers the paid provider and falls back to the free one.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// AddressInput is an address to resolve.
type AddressInput struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Empty reports whether the input carries nothing usable.
func (a AddressInput) Empty() bool {
	return strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.State) == ""
}

// Result holds the outcome of a resolve call. Matched=false means the
// provider answered but found nothing (not an error).
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    string  `json:"source"`
	Matched   bool    `json:"matched"`
}

// Resolver is the narrow contract the pipeline depends on.
type Resolver interface {
	Resolve(ctx context.Context, addr AddressInput) (*Result, error)
}

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, addr AddressInput) (*Result, error)
	Available() bool
}

// formatOneLine joins the non-empty address parts for free-text search APIs.
func formatOneLine(addr AddressInput) string {
	parts := []string{addr.Street, addr.City, addr.State, addr.Zip}
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

func defaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
