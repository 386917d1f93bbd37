package ingestmodel

import "time"

// Job types understood by the worker loop. The set is open for extension;
// these three are the ones a complete ingestion daemon dispatches today.
const (
	JobTypeIngest         = "ingest"
	JobTypeChecksumUpdate = "checksum_update"
	JobTypePrune          = "prune"
)

// Job lifecycle states.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCanceled   = "canceled"
)

// Job is a unit of work accepted by the Job Repository and dispatched to a
// worker. Payload is an opaque structured map carrying the envelope
// described by the external interface (artifact_key, sources, force,
// prune_scope, ...).
type Job struct {
	ID            int64          `json:"id"`
	Type          string         `json:"type"`
	Queue         string         `json:"queue"`
	Payload       map[string]any `json:"payload"`
	Status        string         `json:"status"`
	Attempts      int            `json:"attempts"`
	Error         string         `json:"error,omitempty"`
	ProgressDone  int            `json:"progress_done"`
	ProgressTotal int            `json:"progress_total"`
	ProgressNote  string         `json:"progress_note,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}
