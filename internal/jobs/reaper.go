package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ingestcore/internal/ingestmodel"
	"ingestcore/internal/metrics"
)

// Reaper re-pends jobs stuck in processing past a lease timeout — a worker
// that crashed or was killed mid-job leaves its row claimed forever
// otherwise. Disabled by default per the worker config; when enabled it
// runs as a background loop alongside the worker pool.
type Reaper struct {
	Repo         Repository
	LeaseTimeout time.Duration
	Interval     time.Duration
	Logger       zerolog.Logger
}

// Run polls the repository's queue until ctx is canceled, reclaiming
// (re-pending via Reclaim) any processing job whose started_at is older
// than LeaseTimeout.
func (r *Reaper) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	jobsList, err := r.Repo.List(ctx)
	if err != nil {
		r.Logger.Error().Err(err).Msg("reaper: list jobs failed")
		return
	}
	cutoff := time.Now().Add(-r.LeaseTimeout)
	for _, job := range jobsList {
		if job.Status != ingestmodel.JobStatusProcessing || job.StartedAt == nil {
			continue
		}
		if job.StartedAt.After(cutoff) {
			continue
		}
		ok, err := r.Repo.Reclaim(ctx, job.ID)
		if err != nil {
			r.Logger.Error().Err(err).Int64("job_id", job.ID).Msg("reaper: reclaim failed")
			continue
		}
		if ok {
			r.Logger.Warn().Int64("job_id", job.ID).Msg("reaper: reclaimed stale lease")
			metrics.JobReclaimed(job.Queue)
		}
	}
}
