package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ingestcore/internal/ingestmodel"
)

// PostgresRepository is a Repository backed by a single shared jobs table,
// scoped to one logical queue. FetchAndStart uses SELECT ... FOR UPDATE
// SKIP LOCKED so concurrent workers across processes never double-claim a
// row, mirroring the row-level-locking contract the spec requires of any
// job backend.
type PostgresRepository struct {
	pool  *pgxpool.Pool
	queue string
}

// NewPostgresRepository returns a Repository scoped to queue over the
// shared jobs table in pool. Call Ensure before first use.
func NewPostgresRepository(pool *pgxpool.Pool, queue string) *PostgresRepository {
	return &PostgresRepository{pool: pool, queue: queue}
}

func (r *PostgresRepository) Ensure(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
  id BIGSERIAL PRIMARY KEY,
  type TEXT NOT NULL,
  queue TEXT NOT NULL,
  payload JSONB NOT NULL DEFAULT '{}'::jsonb,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INT NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  progress_done INT NOT NULL DEFAULT 0,
  progress_total INT NOT NULL DEFAULT 0,
  progress_note TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  started_at TIMESTAMPTZ,
  finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs(status);
CREATE INDEX IF NOT EXISTS jobs_queue_status_id_idx ON jobs(queue, status, id);
CREATE INDEX IF NOT EXISTS jobs_id_desc_idx ON jobs(id DESC);
`)
	if err != nil {
		return fmt.Errorf("ensure jobs table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Enqueue(ctx context.Context, jobType string, payload map[string]any) (ingestmodel.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ingestmodel.Job{}, fmt.Errorf("marshal payload: %w", err)
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO jobs (type, queue, payload)
VALUES ($1, $2, $3)
RETURNING id, type, queue, payload, status, attempts, error, progress_done, progress_total, progress_note, created_at, started_at, finished_at
`, jobType, r.queue, raw)
	return scanJob(row)
}

// FetchAndStart claims the oldest pending job on this queue within a
// single transaction: the SELECT locks the row and skips any already
// locked by a concurrent claimant, so two workers racing for the same
// queue never receive the same job.
func (r *PostgresRepository) FetchAndStart(ctx context.Context) (ingestmodel.Job, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ingestmodel.Job{}, false, fmt.Errorf("begin fetch tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
SELECT id, type, queue, payload, status, attempts, error, progress_done, progress_total, progress_note, created_at, started_at, finished_at
FROM jobs
WHERE queue = $1 AND status = $2
ORDER BY id ASC
FOR UPDATE SKIP LOCKED
LIMIT 1
`, r.queue, ingestmodel.JobStatusPending)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ingestmodel.Job{}, false, nil
		}
		return ingestmodel.Job{}, false, fmt.Errorf("select pending job: %w", err)
	}

	if _, err := tx.Exec(ctx, `
UPDATE jobs SET status = $1, attempts = attempts + 1, started_at = now() WHERE id = $2
`, ingestmodel.JobStatusProcessing, job.ID); err != nil {
		return ingestmodel.Job{}, false, fmt.Errorf("claim job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ingestmodel.Job{}, false, fmt.Errorf("commit fetch tx: %w", err)
	}

	job.Status = ingestmodel.JobStatusProcessing
	job.Attempts++
	return job, true, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]ingestmodel.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, type, queue, payload, status, attempts, error, progress_done, progress_total, progress_note, created_at, started_at, finished_at
FROM jobs WHERE queue = $1 ORDER BY id DESC
`, r.queue)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var out []ingestmodel.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (ingestmodel.Job, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, type, queue, payload, status, attempts, error, progress_done, progress_total, progress_note, created_at, started_at, finished_at
FROM jobs WHERE id = $1
`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ingestmodel.Job{}, false, nil
		}
		return ingestmodel.Job{}, false, fmt.Errorf("get job: %w", err)
	}
	return job, true, nil
}

func (r *PostgresRepository) Complete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs SET status = $1, error = '', finished_at = now() WHERE id = $2 AND status = $3
`, ingestmodel.JobStatusCompleted, id, ingestmodel.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepository) Fail(ctx context.Context, id int64, errMsg string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs SET status = $1, error = $2, finished_at = now() WHERE id = $3 AND status = $4
`, ingestmodel.JobStatusFailed, errMsg, id, ingestmodel.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepository) Retry(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs SET status = $1, started_at = NULL, finished_at = NULL, error = ''
WHERE id = $2 AND status IN ($3, $4)
`, ingestmodel.JobStatusPending, id, ingestmodel.JobStatusFailed, ingestmodel.JobStatusCanceled)
	if err != nil {
		return false, fmt.Errorf("retry job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs SET status = $1, finished_at = now(), error = CASE WHEN error = '' THEN 'canceled' ELSE error END
WHERE id = $2 AND status IN ($3, $4)
`, ingestmodel.JobStatusCanceled, id, ingestmodel.JobStatusPending, ingestmodel.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) Reclaim(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs SET status = $1, started_at = NULL
WHERE id = $2 AND status = $3
`, ingestmodel.JobStatusPending, id, ingestmodel.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("reclaim job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) UpdateProgress(ctx context.Context, id int64, done, total *int, note *string) (string, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE jobs SET
  progress_done = COALESCE($1, progress_done),
  progress_total = COALESCE($2, progress_total),
  progress_note = COALESCE($3, progress_note)
WHERE id = $4
RETURNING status
`, done, total, note, id)
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("update progress: %w", err)
	}
	return status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (ingestmodel.Job, error) {
	var job ingestmodel.Job
	var raw []byte
	if err := row.Scan(&job.ID, &job.Type, &job.Queue, &raw, &job.Status, &job.Attempts, &job.Error,
		&job.ProgressDone, &job.ProgressTotal, &job.ProgressNote, &job.CreatedAt, &job.StartedAt, &job.FinishedAt); err != nil {
		return ingestmodel.Job{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &job.Payload); err != nil {
			return ingestmodel.Job{}, fmt.Errorf("unmarshal job payload: %w", err)
		}
	}
	return job, nil
}

var _ Repository = (*PostgresRepository)(nil)
