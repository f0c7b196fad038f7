// Package store persists staging records, canonical entities, provenance,
// and run metadata. Two backends implement Store: Postgres for production
// and SQLite for local/dev use.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hududed/bayanlab/internal/model"
)

// ErrDuplicateKey marks an insert rejected by the (region, dedup_key) or
// placekey uniqueness constraint. The canonical writer re-resolves identity
// and retries as a merge.
var ErrDuplicateKey = errors.New("store: duplicate dedup key")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	BuildType model.EntityKind `json:"build_type,omitempty"`
	Status    model.RunStatus  `json:"status,omitempty"`
	Limit     int              `json:"limit,omitempty"`
}

// Store defines the persistence interface for the reconciliation pipeline.
// Find* methods return (nil, nil) when no row matches.
type Store interface {
	// Staging. ClaimBatch only touches records belonging to ingestRunID's
	// staging set; records from other ingest runs stay unclaimed.
	SubmitRaw(ctx context.Context, rec *model.RawRecord) (uuid.UUID, error)
	ClaimBatch(ctx context.Context, claim, ingestRunID uuid.UUID, kind model.EntityKind, limit int) ([]model.RawRecord, error)
	MarkProcessed(ctx context.Context, stagingID uuid.UUID, errMsg string) error
	ReleaseStaleClaims(ctx context.Context, olderThan time.Duration) (int, error)

	// Canonical businesses
	FindBusinessByPlacekey(ctx context.Context, region, placekey string) (*model.CanonicalBusiness, error)
	FindBusinessByKey(ctx context.Context, region, key string) (*model.CanonicalBusiness, error)
	GetBusiness(ctx context.Context, id uuid.UUID) (*model.CanonicalBusiness, error)
	InsertBusiness(ctx context.Context, b *model.CanonicalBusiness) error
	UpdateBusiness(ctx context.Context, b *model.CanonicalBusiness) error

	// Canonical events
	FindEventByKey(ctx context.Context, region, key string) (*model.CanonicalEvent, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*model.CanonicalEvent, error)
	InsertEvent(ctx context.Context, e *model.CanonicalEvent) error
	UpdateEvent(ctx context.Context, e *model.CanonicalEvent) error

	// Provenance
	AppendProvenance(ctx context.Context, entry *model.ProvenanceEntry) error
	LatestProvenance(ctx context.Context, entityType model.EntityKind, entityID uuid.UUID, action model.ProvenanceAction) (*model.ProvenanceEntry, error)
	ListProvenance(ctx context.Context, entityType model.EntityKind, entityID uuid.UUID) ([]model.ProvenanceEntry, error)

	// Runs
	CreateRun(ctx context.Context, buildType model.EntityKind, ingestRunID uuid.UUID) (*model.IngestRun, error)
	CompleteRun(ctx context.Context, buildID uuid.UUID, status model.RunStatus, processed, failed int, errorLog string) error
	GetRun(ctx context.Context, buildID uuid.UUID) (*model.IngestRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestRun, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
