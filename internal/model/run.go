package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a reconciliation run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Valid reports whether s is a recognized run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunRunning, RunSuccess, RunFailed:
		return true
	}
	return false
}

// IngestRun is one execution of the reconciliation pipeline, recorded in
// build metadata. A run goes failed only when a systemic error aborts it;
// per-record failures are counted in RecordsFailed and leave the run
// successful.
type IngestRun struct {
	BuildID          uuid.UUID  `json:"build_id"`
	BuildType        EntityKind `json:"build_type"`
	IngestRunID      uuid.UUID  `json:"ingest_run_id"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Status           RunStatus  `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorLog         string     `json:"error_log,omitempty"`
}
