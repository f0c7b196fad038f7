// Package mapper converts source-shaped raw payloads into canonical-shaped
// candidates. Each source tag has its own mapping rule set; all converge on
// model.Candidate. Mapping is purely shape/type conversion: required-field
// presence is the DQ evaluator's job, and a mapper must not fail merely
// because an optional field is missing. It fails only on structurally
// malformed payloads.
package mapper

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/hududed/bayanlab/internal/address"
	"github.com/hududed/bayanlab/internal/model"
)

// Error marks a structurally malformed payload. Records failing with an
// Error are marked processed with the message recorded and are not retried.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

// Errorf creates a mapping error.
func Errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// IsMappingError reports whether the error chain contains a mapping Error.
func IsMappingError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// RawToCanonical converts one source's raw payload into a candidate.
type RawToCanonical interface {
	Map(rec *model.RawRecord) (*model.Candidate, error)
}

type registryKey struct {
	kind   model.EntityKind
	source model.Source
}

// Registry dispatches raw records to the mapper registered for their
// (entity kind, source) pair.
type Registry struct {
	mappers       map[registryKey]RawToCanonical
	defaultRegion string
}

// NewRegistry creates a registry with all built-in mappers registered.
func NewRegistry(defaultRegion string) *Registry {
	r := &Registry{
		mappers:       make(map[registryKey]RawToCanonical),
		defaultRegion: defaultRegion,
	}
	r.Register(model.KindEvent, model.SourceICS, &icsEventMapper{})
	r.Register(model.KindEvent, model.SourceCSV, &csvEventMapper{})
	r.Register(model.KindBusiness, model.SourceCSV, &csvBusinessMapper{})
	r.Register(model.KindBusiness, model.SourceOSM, &osmBusinessMapper{})
	r.Register(model.KindBusiness, model.SourceCertifier, &certifierBusinessMapper{})
	r.Register(model.KindBusiness, model.SourceClaim, &claimBusinessMapper{})
	return r
}

// Register adds or replaces the mapper for a (kind, source) pair.
func (r *Registry) Register(kind model.EntityKind, source model.Source, m RawToCanonical) {
	r.mappers[registryKey{kind, source}] = m
}

// Map converts a raw record into a normalized candidate: dispatches to the
// source mapper, fills record-level defaults, and cleans address fragments
// so that dedup keys and geocoding inputs are stable.
func (r *Registry) Map(rec *model.RawRecord) (*model.Candidate, error) {
	if !rec.EntityKind.Valid() {
		return nil, Errorf("mapper: unknown entity kind %q", rec.EntityKind)
	}
	if !rec.Source.Valid() {
		return nil, Errorf("mapper: unknown source %q", rec.Source)
	}

	m, ok := r.mappers[registryKey{rec.EntityKind, rec.Source}]
	if !ok {
		return nil, Errorf("mapper: no mapper for %s/%s", rec.EntityKind, rec.Source)
	}

	c, err := m.Map(rec)
	if err != nil {
		return nil, eris.Wrapf(err, "mapper: %s/%s", rec.EntityKind, rec.Source)
	}

	c.Kind = rec.EntityKind
	c.Source = rec.Source
	if c.SourceRef == "" {
		c.SourceRef = rec.SourceRef
	}
	if c.Region == "" {
		c.Region = r.defaultRegion
	}

	c.Street = address.CleanStreet(c.Street)
	c.City = address.CleanCity(c.City)
	c.State = address.NormalizeState(c.State)

	return c, nil
}
