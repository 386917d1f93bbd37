// Package jobs implements the persistent multi-queue Job Repository (C9):
// fair FIFO pickup per logical queue, lease-free processing ownership via
// an atomic pending-to-processing transition, progress reporting, and the
// job state machine (pending -> processing -> {completed, failed,
// canceled}, with retry from failed/canceled back to pending).
package jobs

import (
	"context"
	"errors"

	"ingestcore/internal/ingestmodel"
)

// ErrInvalidTransition is returned when a state-changing operation is
// attempted from a status that does not allow it (e.g. completing a job
// that isn't processing).
var ErrInvalidTransition = errors.New("jobs: invalid state transition")

// ErrNotFound reports that no job exists with the given id. Get does not
// return it; Get reports a missing job with ok=false.
var ErrNotFound = errors.New("jobs: job not found")

// Repository owns job rows for a single logical queue. A factory
// constructs one Repository instance per queue/job type so a worker pool
// can be dedicated per queue.
type Repository interface {
	// Ensure creates backing schema/state if it does not already exist.
	Ensure(ctx context.Context) error

	// Enqueue creates a new pending job on this repository's queue and
	// returns it with its assigned id.
	Enqueue(ctx context.Context, jobType string, payload map[string]any) (ingestmodel.Job, error)

	// FetchAndStart atomically claims the oldest pending job on this
	// queue and transitions it to processing. Returns ok=false if no job
	// is available. Concurrent callers never receive the same job twice.
	FetchAndStart(ctx context.Context) (job ingestmodel.Job, ok bool, err error)

	// List returns all jobs on this repository's queue, newest id first.
	List(ctx context.Context) ([]ingestmodel.Job, error)

	// Get returns a single job by id, regardless of queue.
	Get(ctx context.Context, id int64) (ingestmodel.Job, bool, error)

	// Complete transitions processing -> completed. No-op (returns
	// ErrInvalidTransition) if the job is not in processing.
	Complete(ctx context.Context, id int64) error

	// Fail transitions processing -> failed, recording errMsg.
	Fail(ctx context.Context, id int64, errMsg string) error

	// Retry transitions failed|canceled -> pending, clearing timestamps
	// and error. Returns ok=false if the job was in neither state.
	Retry(ctx context.Context, id int64) (ok bool, err error)

	// Cancel transitions pending|processing -> canceled. Returns
	// ok=false if the job was in neither state. Cancellation of a
	// processing job is cooperative: the worker observes it on its next
	// progress checkpoint.
	Cancel(ctx context.Context, id int64) (ok bool, err error)

	// UpdateProgress partially updates the three progress fields;
	// nil arguments preserve prior values. It also returns the job's
	// current status so callers can detect cooperative cancellation.
	UpdateProgress(ctx context.Context, id int64, done, total *int, note *string) (status string, err error)

	// Reclaim transitions processing -> pending unconditionally, clearing
	// started_at and attempts are left untouched (a subsequent
	// FetchAndStart will increment attempts again). Used by the reaper to
	// recover jobs whose worker died mid-lease. Returns ok=false if the
	// job was not in processing.
	Reclaim(ctx context.Context, id int64) (ok bool, err error)
}
