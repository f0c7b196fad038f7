package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProvenanceAction labels a provenance entry.
type ProvenanceAction string

const (
	ActionCreated   ProvenanceAction = "created"
	ActionMerged    ProvenanceAction = "merged"
	ActionUpdated   ProvenanceAction = "updated"
	ActionDQFlagged ProvenanceAction = "dq_flagged"
)

// Valid reports whether a is a recognized provenance action.
func (a ProvenanceAction) Valid() bool {
	switch a {
	case ActionCreated, ActionMerged, ActionUpdated, ActionDQFlagged:
		return true
	}
	return false
}

// FieldChange records one field's before/after values in a merge.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ProvenanceEntry is one append-only audit line for a canonical entity.
type ProvenanceEntry struct {
	ProvID     uuid.UUID        `json:"prov_id"`
	EntityType EntityKind       `json:"entity_type"`
	EntityID   uuid.UUID        `json:"entity_id"`
	Action     ProvenanceAction `json:"action"`
	Details    json.RawMessage  `json:"details,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// CreatedDetails is the details payload for a created entry.
type CreatedDetails struct {
	Source    Source `json:"source"`
	SourceRef string `json:"source_ref,omitempty"`
	DedupKey  string `json:"dedup_key"`
}

// MergedDetails is the details payload for a merged entry.
type MergedDetails struct {
	Source    Source                 `json:"source"`
	SourceRef string                 `json:"source_ref,omitempty"`
	Changes   map[string]FieldChange `json:"changes"`
}

// DQFlaggedDetails is the details payload for a dq_flagged entry.
type DQFlaggedDetails struct {
	Status DQStatus `json:"status"`
	Issues []string `json:"issues"`
}
