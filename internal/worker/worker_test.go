package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ingestcore/internal/checksumstore"
	"ingestcore/internal/embedding"
	"ingestcore/internal/indexer"
	"ingestcore/internal/ingestmodel"
	"ingestcore/internal/jobs"
	"ingestcore/internal/pruner"
	"ingestcore/internal/vectorstore"
)

func newTestLoop(t *testing.T, repo jobs.Repository) (*Loop, *vectorstore.MemoryGateway, *checksumstore.MemoryStore) {
	t.Helper()
	checksums := checksumstore.NewMemoryStore()
	vectors := vectorstore.NewMemoryGateway(0)
	embedder := embedding.NewDeterministic(8, true, 1)
	ix := indexer.New(checksums, embedder, vectors)
	pr := pruner.New(vectors)
	return &Loop{
		Repo:    repo,
		Indexer: ix,
		Pruner:  pr,
	}, vectors, checksums
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWorkerIngestsFromInlineLocalDirSource(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "doc.md", "hello ingestion")

	backend := jobs.NewMemoryBackend()
	repo := backend.Repository("ingest")
	loop, vectors, _ := newTestLoop(t, repo)

	ctx := context.Background()
	job, err := repo.Enqueue(ctx, ingestmodel.JobTypeIngest, map[string]any{
		"sources": []map[string]any{
			{"type": "local_dir", "path": dir, "repo_url": "repo://docs", "exts": []string{".md"}},
		},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	started, ok, err := repo.FetchAndStart(ctx)
	if err != nil || !ok {
		t.Fatalf("fetch: ok=%v err=%v", ok, err)
	}
	if err := loop.process(ctx, started); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := repo.Complete(ctx, job.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	snap := vectors.Snapshot()
	if _, ok := snap["repo://docs@doc.md"]; !ok {
		t.Fatalf("expected vector row for ingested doc, got %+v", snap)
	}

	got, _, _ := repo.Get(ctx, job.ID)
	if got.Status != ingestmodel.JobStatusCompleted {
		t.Fatalf("expected completed, got %q", got.Status)
	}
	if got.ProgressTotal != 1 {
		t.Fatalf("expected progress_total 1, got %d", got.ProgressTotal)
	}
}

func TestWorkerIdempotentReingestWritesNothing(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "doc.md", "stable content")

	backend := jobs.NewMemoryBackend()
	repo := backend.Repository("ingest")
	loop, vectors, checksums := newTestLoop(t, repo)
	ctx := context.Background()

	srcs := []map[string]any{{"type": "local_dir", "path": dir, "repo_url": "repo://docs", "exts": []string{".md"}}}

	firstJob, _ := repo.Enqueue(ctx, ingestmodel.JobTypeIngest, map[string]any{"sources": srcs})
	started, _, _ := repo.FetchAndStart(ctx)
	if err := loop.process(ctx, started); err != nil {
		t.Fatalf("process first: %v", err)
	}
	_ = repo.Complete(ctx, firstJob.ID)

	before := len(vectors.Snapshot())
	beforeChecksums, _ := checksums.LoadMap(ctx)

	secondJob, _ := repo.Enqueue(ctx, ingestmodel.JobTypeIngest, map[string]any{"sources": srcs})
	started2, _, _ := repo.FetchAndStart(ctx)
	if err := loop.process(ctx, started2); err != nil {
		t.Fatalf("process second: %v", err)
	}
	_ = repo.Complete(ctx, secondJob.ID)

	after := len(vectors.Snapshot())
	afterChecksums, _ := checksums.LoadMap(ctx)
	if before != after {
		t.Fatalf("expected no new vector rows on idempotent re-ingest, before=%d after=%d", before, after)
	}
	if len(beforeChecksums) != len(afterChecksums) {
		t.Fatalf("expected no new checksum rows on idempotent re-ingest")
	}

	got, _, _ := repo.Get(ctx, secondJob.ID)
	if got.ProgressNote == "" {
		t.Fatalf("expected a progress note explaining the no-op")
	}
}

func TestWorkerForcedReingestRewritesUnchangedItem(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "doc.md", "stable content")

	backend := jobs.NewMemoryBackend()
	repo := backend.Repository("ingest")
	loop, vectors, _ := newTestLoop(t, repo)
	ctx := context.Background()
	srcs := []map[string]any{{"type": "local_dir", "path": dir, "repo_url": "repo://docs", "exts": []string{".md"}}}

	firstJob, _ := repo.Enqueue(ctx, ingestmodel.JobTypeIngest, map[string]any{"sources": srcs})
	started, _, _ := repo.FetchAndStart(ctx)
	_ = loop.process(ctx, started)
	_ = repo.Complete(ctx, firstJob.ID)

	secondJob, _ := repo.Enqueue(ctx, ingestmodel.JobTypeIngest, map[string]any{"sources": srcs, "force": true})
	started2, _, _ := repo.FetchAndStart(ctx)
	if err := loop.process(ctx, started2); err != nil {
		t.Fatalf("process forced: %v", err)
	}
	_ = repo.Complete(ctx, secondJob.ID)

	got, _, _ := repo.Get(ctx, secondJob.ID)
	if got.ProgressDone != 1 || got.ProgressTotal != 1 {
		t.Fatalf("expected forced reingest to process the one item, got done=%d total=%d", got.ProgressDone, got.ProgressTotal)
	}
	if len(vectors.Snapshot()) != 1 {
		t.Fatalf("expected exactly one vector row after forced reingest")
	}
}

func TestWorkerPruneAfterFileRemoval(t *testing.T) {
	backend := jobs.NewMemoryBackend()
	repo := backend.Repository("prune")
	loop, vectors, _ := newTestLoop(t, repo)
	ctx := context.Background()

	if err := vectors.Upsert(ctx, []vectorstore.Row{
		{NodeID: "R@A.md", Metadata: map[string]string{ingestmodel.MetaRepo: "R"}},
		{NodeID: "R@B.md", Metadata: map[string]string{ingestmodel.MetaRepo: "R"}},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	dir := t.TempDir()
	writeTestFile(t, dir, "A.md", "kept")

	job, _ := repo.Enqueue(ctx, ingestmodel.JobTypePrune, map[string]any{
		"sources": []map[string]any{
			{"type": "local_dir", "path": dir, "repo_url": "R", "exts": []string{".md"}},
		},
		"prune_scope": map[string]any{"metadata_repo_in": []string{"R"}},
	})
	started, _, _ := repo.FetchAndStart(ctx)
	if err := loop.process(ctx, started); err != nil {
		t.Fatalf("process prune: %v", err)
	}
	_ = repo.Complete(ctx, job.ID)

	snap := vectors.Snapshot()
	if _, ok := snap["R@B.md"]; ok {
		t.Fatalf("expected R@B.md to be pruned")
	}
	if _, ok := snap["R@A.md"]; !ok {
		t.Fatalf("expected R@A.md to be retained")
	}
}

func TestWorkerFailsJobOnUnknownSourceType(t *testing.T) {
	backend := jobs.NewMemoryBackend()
	repo := backend.Repository("ingest")
	loop, _, _ := newTestLoop(t, repo)
	ctx := context.Background()

	_, err := repo.Enqueue(ctx, ingestmodel.JobTypeIngest, map[string]any{
		"sources": []map[string]any{{"type": "carrier_pigeon"}},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	started, _, _ := repo.FetchAndStart(ctx)
	if err := loop.process(ctx, started); err == nil {
		t.Fatalf("expected process to fail for an unknown source type")
	}
}
