// Package identity computes dedup keys for normalized candidates and looks
// up whether a matching canonical record already exists. Matching is
// deliberately exact: an external stable place identifier when the source
// carries one, otherwise normalized name+city+state. Fuzzy matching is out
// of scope.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/hududed/bayanlab/internal/model"
)

// Lookup is the slice of canonical storage the resolver needs. A nil record
// with a nil error means no match.
type Lookup interface {
	FindBusinessByPlacekey(ctx context.Context, region, placekey string) (*model.CanonicalBusiness, error)
	FindBusinessByKey(ctx context.Context, region, key string) (*model.CanonicalBusiness, error)
	FindEventByKey(ctx context.Context, region, key string) (*model.CanonicalEvent, error)
}

// Identity is the outcome of resolution: the candidate's dedup key and the
// existing canonical row id, if one matched.
type Identity struct {
	Key      string
	Existing *uuid.UUID
}

// Key builds the dedup key for a candidate: the placekey when the source
// supplies one, else lower(name)|lower(city)|lower(state). The address
// normalizer has already run, so city/state are in canonical form.
func Key(c *model.Candidate) string {
	if pk := c.Placekey(); pk != "" {
		return pk
	}
	return fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(c.DisplayName())),
		strings.ToLower(strings.TrimSpace(c.City)),
		strings.ToLower(strings.TrimSpace(c.State)),
	)
}

// Resolver finds the canonical row, if any, that an incoming candidate
// describes.
type Resolver struct {
	store Lookup
}

// NewResolver creates a resolver backed by canonical storage.
func NewResolver(store Lookup) *Resolver {
	return &Resolver{store: store}
}

// Resolve computes the candidate's dedup key and performs a single indexed
// lookup scoped to the candidate's region. For businesses with a placekey
// the placekey lookup takes precedence; if it misses, the record is new
// under that key (no secondary name lookup, the placekey is authoritative).
func (r *Resolver) Resolve(ctx context.Context, c *model.Candidate) (*Identity, error) {
	key := Key(c)
	id := &Identity{Key: key}

	switch c.Kind {
	case model.KindBusiness:
		var (
			existing *model.CanonicalBusiness
			err      error
		)
		if c.Placekey() != "" {
			existing, err = r.store.FindBusinessByPlacekey(ctx, c.Region, c.Placekey())
		} else {
			existing, err = r.store.FindBusinessByKey(ctx, c.Region, key)
		}
		if err != nil {
			return nil, eris.Wrap(err, "identity: business lookup")
		}
		if existing != nil {
			id.Existing = &existing.BusinessID
		}
	case model.KindEvent:
		existing, err := r.store.FindEventByKey(ctx, c.Region, key)
		if err != nil {
			return nil, eris.Wrap(err, "identity: event lookup")
		}
		if existing != nil {
			id.Existing = &existing.EventID
		}
	default:
		return nil, eris.Errorf("identity: unknown entity kind %q", c.Kind)
	}

	return id, nil
}
