// Package model defines the staging, candidate, canonical, provenance, and
// run types shared across the reconciliation pipeline.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityKind discriminates the two canonical entity types.
type EntityKind string

const (
	KindEvent    EntityKind = "event"
	KindBusiness EntityKind = "business"
)

// Valid reports whether k is a recognized entity kind.
func (k EntityKind) Valid() bool {
	return k == KindEvent || k == KindBusiness
}

// Source identifies where a raw record came from.
type Source string

const (
	SourceICS       Source = "ics"       // calendar feed poller
	SourceCSV       Source = "csv"       // seed/flat-file loader
	SourceOSM       Source = "osm"       // OpenStreetMap import
	SourceCertifier Source = "certifier" // halal certifier file
	SourceClaim     Source = "claim"     // approved self-service claim
)

// Valid reports whether s is a recognized source tag.
func (s Source) Valid() bool {
	switch s {
	case SourceICS, SourceCSV, SourceOSM, SourceCertifier, SourceClaim:
		return true
	}
	return false
}

// RawRecord is a staging row: one source-shaped payload awaiting
// reconciliation. Created by ingestion collaborators; only the orchestrator
// flips Processed and sets ErrorMessage.
type RawRecord struct {
	StagingID    uuid.UUID       `json:"staging_id"`
	IngestRunID  uuid.UUID       `json:"ingest_run_id"`
	EntityKind   EntityKind      `json:"entity_kind"`
	Source       Source          `json:"source"`
	SourceRef    string          `json:"source_ref,omitempty"`
	RawPayload   json.RawMessage `json:"raw_payload"`
	IngestedAt   time.Time       `json:"ingested_at"`
	Processed    bool            `json:"processed"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ClaimedBy    *uuid.UUID      `json:"claimed_by,omitempty"`
}
