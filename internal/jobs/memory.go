package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"ingestcore/internal/ingestmodel"
)

// MemoryBackend is the shared state behind a family of per-queue
// MemoryRepository instances, mirroring the single jobs table a postgres
// deployment would share across queues.
type MemoryBackend struct {
	mu     sync.Mutex
	byID   map[int64]*ingestmodel.Job
	nextID int64
}

// NewMemoryBackend constructs an empty shared backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{byID: make(map[int64]*ingestmodel.Job)}
}

// Repository returns a Repository bound to one logical queue over this
// backend's shared job table.
func (b *MemoryBackend) Repository(queue string) Repository {
	return &sharedMemoryRepository{backend: b, queue: queue}
}

type sharedMemoryRepository struct {
	backend *MemoryBackend
	queue   string
}

func (r *sharedMemoryRepository) Ensure(ctx context.Context) error { return nil }

func (r *sharedMemoryRepository) Enqueue(ctx context.Context, jobType string, payload map[string]any) (ingestmodel.Job, error) {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	job := &ingestmodel.Job{
		ID:        b.nextID,
		Type:      jobType,
		Queue:     r.queue,
		Payload:   payload,
		Status:    ingestmodel.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	b.byID[job.ID] = job
	return *job, nil
}

func (r *sharedMemoryRepository) FetchAndStart(ctx context.Context) (ingestmodel.Job, bool, error) {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []int64
	for id, j := range b.byID {
		if j.Queue == r.queue && j.Status == ingestmodel.JobStatusPending {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ingestmodel.Job{}, false, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	job := b.byID[ids[0]]
	now := time.Now().UTC()
	job.Status = ingestmodel.JobStatusProcessing
	job.StartedAt = &now
	job.Attempts++
	return *job, true, nil
}

func (r *sharedMemoryRepository) List(ctx context.Context) ([]ingestmodel.Job, error) {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []ingestmodel.Job
	for _, j := range b.byID {
		if j.Queue == r.queue {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID > out[k].ID })
	return out, nil
}

func (r *sharedMemoryRepository) Get(ctx context.Context, id int64) (ingestmodel.Job, bool, error) {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.byID[id]
	if !ok {
		return ingestmodel.Job{}, false, nil
	}
	return *j, true, nil
}

func (r *sharedMemoryRepository) Complete(ctx context.Context, id int64) error {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.byID[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != ingestmodel.JobStatusProcessing {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	j.Status = ingestmodel.JobStatusCompleted
	j.Error = ""
	j.FinishedAt = &now
	return nil
}

func (r *sharedMemoryRepository) Fail(ctx context.Context, id int64, errMsg string) error {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.byID[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != ingestmodel.JobStatusProcessing {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	j.Status = ingestmodel.JobStatusFailed
	j.Error = errMsg
	j.FinishedAt = &now
	return nil
}

func (r *sharedMemoryRepository) Retry(ctx context.Context, id int64) (bool, error) {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status != ingestmodel.JobStatusFailed && j.Status != ingestmodel.JobStatusCanceled {
		return false, nil
	}
	j.Status = ingestmodel.JobStatusPending
	j.StartedAt = nil
	j.FinishedAt = nil
	j.Error = ""
	return true, nil
}

func (r *sharedMemoryRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status != ingestmodel.JobStatusPending && j.Status != ingestmodel.JobStatusProcessing {
		return false, nil
	}
	now := time.Now().UTC()
	j.Status = ingestmodel.JobStatusCanceled
	j.FinishedAt = &now
	if j.Error == "" {
		j.Error = "canceled"
	}
	return true, nil
}

func (r *sharedMemoryRepository) Reclaim(ctx context.Context, id int64) (bool, error) {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status != ingestmodel.JobStatusProcessing {
		return false, nil
	}
	j.Status = ingestmodel.JobStatusPending
	j.StartedAt = nil
	return true, nil
}

func (r *sharedMemoryRepository) UpdateProgress(ctx context.Context, id int64, done, total *int, note *string) (string, error) {
	b := r.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.byID[id]
	if !ok {
		return "", ErrNotFound
	}
	if done != nil {
		j.ProgressDone = *done
	}
	if total != nil {
		j.ProgressTotal = *total
	}
	if note != nil {
		j.ProgressNote = *note
	}
	return j.Status, nil
}

var _ Repository = (*sharedMemoryRepository)(nil)
