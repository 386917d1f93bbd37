// Package worker implements the worker loop (C10): it claims jobs from a
// jobs.Repository, materializes their item stream (from a stored manifest
// or inline source specifications), dispatches to the Indexer or Pruner
// according to job type, and reports progress back to the repository at
// every checkpoint so cooperative cancellation and the front-end's poll
// loop both observe live state.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ingestcore/internal/artifactstore"
	"ingestcore/internal/chunker"
	"ingestcore/internal/indexer"
	"ingestcore/internal/ingestmodel"
	"ingestcore/internal/jobs"
	"ingestcore/internal/logging"
	"ingestcore/internal/metrics"
	"ingestcore/internal/pruner"
	"ingestcore/internal/sources"
)

// errCanceled is returned internally when a progress checkpoint observes
// that the job's status has moved to canceled out from under the worker.
var errCanceled = fmt.Errorf("worker: job canceled")

// jobPayload is the decoded shape of ingestmodel.Job.Payload, the envelope
// shared by ingest, checksum_update, and prune jobs.
type jobPayload struct {
	ArtifactKey  string          `json:"artifact_key"`
	Sources      []sources.Spec  `json:"sources"`
	ChunkSize    int             `json:"chunk_size"`
	ChunkOverlap int             `json:"chunk_overlap"`
	Force        bool            `json:"force"`
	PruneScope   *pruneScopeSpec `json:"prune_scope"`
}

type pruneScopeSpec struct {
	MetadataRepoIn           []string `json:"metadata_repo_in"`
	MetadataRepoFromManifest bool     `json:"metadata_repo_from_manifest"`
	DocIDPrefixes            []string `json:"doc_id_prefixes"`
	DocIDInFromManifest      bool     `json:"doc_id_in_from_manifest"`
}

// Loop binds a Job Repository to the components it dispatches into.
type Loop struct {
	Repo         jobs.Repository
	Artifacts    artifactstore.Store
	Indexer      *indexer.Indexer
	Pruner       *pruner.Pruner
	DefaultExts  []string
	GitHubToken  string
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Run polls the repository for work until ctx is canceled. Each claimed
// job runs to completion (or failure) before the next FetchAndStart.
func (l *Loop) Run(ctx context.Context) {
	interval := l.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := l.Repo.FetchAndStart(ctx)
		if err != nil {
			l.Logger.Error().Err(err).Msg("fetch_and_start failed")
			time.Sleep(interval)
			continue
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
			continue
		}

		l.Logger.Info().Int64("job_id", job.ID).Str("type", job.Type).Msg("job started")
		start := time.Now()
		if err := l.process(ctx, job); err != nil {
			if err == errCanceled {
				l.Logger.Info().Int64("job_id", job.ID).Msg("job canceled")
				metrics.JobCanceled(job.Queue, job.Type)
				continue
			}
			l.Logger.Error().Err(err).Int64("job_id", job.ID).
				RawJSON("payload", logging.RedactJSON(job.Payload)).
				Msg("job failed")
			if ferr := l.Repo.Fail(ctx, job.ID, err.Error()); ferr != nil {
				l.Logger.Error().Err(ferr).Int64("job_id", job.ID).Msg("failed to record job failure")
			}
			metrics.JobFailed(job.Queue, job.Type, time.Since(start).Seconds())
			continue
		}
		l.Logger.Info().Int64("job_id", job.ID).Msg("job completed")
		if err := l.Repo.Complete(ctx, job.ID); err != nil {
			l.Logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to record job completion")
		}
		metrics.JobCompleted(job.Queue, job.Type, time.Since(start).Seconds())
	}
}

func (l *Loop) process(ctx context.Context, job ingestmodel.Job) error {
	payload, err := decodePayload(job.Payload)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	manifest, err := l.materialize(ctx, payload)
	if err != nil {
		return fmt.Errorf("materialize items: %w", err)
	}

	switch job.Type {
	case ingestmodel.JobTypeIngest:
		return l.Indexer.Index(ctx, manifest.Items, payload.Force, func(ctx context.Context, p indexer.Progress) error {
			return l.reportProgress(ctx, job.ID, p.Done, p.Total, p.Note)
		})
	case ingestmodel.JobTypeChecksumUpdate:
		return l.Indexer.UpdateChecksums(ctx, manifest.Items, func(ctx context.Context, p indexer.Progress) error {
			return l.reportProgress(ctx, job.ID, p.Done, p.Total, p.Note)
		})
	case ingestmodel.JobTypePrune:
		if payload.PruneScope == nil {
			return fmt.Errorf("prune job missing prune_scope")
		}
		scope := pruner.Scope{
			MetadataRepoIn:           payload.PruneScope.MetadataRepoIn,
			MetadataRepoFromManifest: payload.PruneScope.MetadataRepoFromManifest,
			DocIDPrefixes:            payload.PruneScope.DocIDPrefixes,
			DocIDInFromManifest:      payload.PruneScope.DocIDInFromManifest,
		}
		return l.Pruner.Prune(ctx, manifest, scope, func(ctx context.Context, p pruner.Progress) error {
			return l.reportProgress(ctx, job.ID, p.Done, p.Total, "")
		})
	default:
		return fmt.Errorf("unknown job type: %q", job.Type)
	}
}

func (l *Loop) reportProgress(ctx context.Context, jobID int64, done, total int, note string) error {
	status, err := l.Repo.UpdateProgress(ctx, jobID, &done, &total, &note)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if status == ingestmodel.JobStatusCanceled {
		return errCanceled
	}
	return nil
}

// materialize resolves a job's item set: either a stored manifest fetched
// by artifact_key, or an inline list of source specifications streamed and
// collected, optionally chunked.
func (l *Loop) materialize(ctx context.Context, payload jobPayload) (ingestmodel.Manifest, error) {
	if payload.ArtifactKey != "" {
		return l.Artifacts.Get(ctx, payload.ArtifactKey)
	}

	var items []ingestmodel.Item
	for _, spec := range payload.Sources {
		adapter, err := sources.Build(spec, l.DefaultExts, l.GitHubToken)
		if err != nil {
			return ingestmodel.Manifest{}, fmt.Errorf("build adapter %s: %w", spec.Type, err)
		}
		streamed, err := drainAdapter(ctx, adapter)
		if err != nil {
			metrics.AdapterError(spec.Type)
			return ingestmodel.Manifest{}, fmt.Errorf("stream %s: %w", spec.Type, err)
		}
		items = append(items, streamed...)
	}
	metrics.ItemsScanned(len(items))

	if payload.ChunkSize > 0 {
		overlap := payload.ChunkOverlap
		if overlap == 0 {
			overlap = chunker.DefaultOverlap
		}
		items = chunker.SplitAll(items, chunker.Options{ChunkSize: payload.ChunkSize, Overlap: overlap})
		metrics.ItemsChunked(len(items))
	}

	return ingestmodel.NewManifest(items), nil
}

func drainAdapter(ctx context.Context, adapter sources.Adapter) ([]ingestmodel.Item, error) {
	itemsCh, errsCh := adapter.Stream(ctx)
	var items []ingestmodel.Item
	for itemsCh != nil || errsCh != nil {
		select {
		case item, ok := <-itemsCh:
			if !ok {
				itemsCh = nil
				continue
			}
			items = append(items, item)
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if err != nil {
				return items, err
			}
		case <-ctx.Done():
			return items, ctx.Err()
		}
	}
	return items, nil
}

func decodePayload(raw map[string]any) (jobPayload, error) {
	var p jobPayload
	data, err := json.Marshal(raw)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	return p, nil
}
