// Package indexer implements the incremental indexer (C7): it diffs
// incoming items against the checksum store, embeds and upserts only what
// changed, and writes checksum records after the vector upsert succeeds so
// a crash between the two steps never silently drops an update.
package indexer

import (
	"context"
	"fmt"

	"ingestcore/internal/checksumstore"
	"ingestcore/internal/embedding"
	"ingestcore/internal/ingestmodel"
	"ingestcore/internal/metrics"
	"ingestcore/internal/vectorstore"
)

// Stage names the indexer emits through progress callbacks, in order.
type Stage string

const (
	StageScanning Stage = "scanning"
	StageFiltered Stage = "filtered"
	StageIndexing Stage = "indexing"
	StageIndexed  Stage = "indexed"
	StageDone     Stage = "done"
)

// Progress describes one progress checkpoint. Note is a short human
// readable annotation ("no changes", batch counters, etc).
type Progress struct {
	Stage Stage
	Done  int
	Total int
	Note  string
}

// ProgressFunc is invoked at each stage transition and batch boundary. It
// doubles as the cancellation checkpoint: returning an error aborts
// indexing immediately and that error is propagated to the caller.
type ProgressFunc func(ctx context.Context, p Progress) error

// batchSize bounds how many items are embedded and upserted per round so
// that progress can be reported and cancellation observed between rounds,
// rather than on a single end-to-end call.
const batchSize = 64

// Indexer wires the checksum store, embedder, and vector gateway together
// per the incremental indexing contract.
type Indexer struct {
	Checksums checksumstore.Store
	Embedder  embedding.Embedder
	Vectors   vectorstore.Gateway
}

// New constructs an Indexer from its three collaborators.
func New(checksums checksumstore.Store, embedder embedding.Embedder, vectors vectorstore.Gateway) *Indexer {
	return &Indexer{Checksums: checksums, Embedder: embedder, Vectors: vectors}
}

// Index runs one incremental pass over items. With force=false, items whose
// checksum already matches the stored checksum are skipped. With
// force=true, every item is re-embedded and upserted regardless of
// checksum. Checksum upserts for a batch happen only after its vector
// upsert succeeds.
func (ix *Indexer) Index(ctx context.Context, items []ingestmodel.Item, force bool, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(context.Context, Progress) error { return nil }
	}

	if err := onProgress(ctx, Progress{Stage: StageScanning, Total: len(items)}); err != nil {
		return err
	}

	checksumMap, err := ix.Checksums.LoadMap(ctx)
	if err != nil {
		return fmt.Errorf("load checksum map: %w", err)
	}

	var batch []ingestmodel.Item
	for _, item := range items {
		if !force && checksumMap[item.DocID] == item.Checksum {
			continue
		}
		batch = append(batch, item)
	}

	metrics.ItemsFiltered(len(items) - len(batch))
	if len(batch) == 0 {
		if err := onProgress(ctx, Progress{Stage: StageFiltered, Total: len(items), Note: "no changes"}); err != nil {
			return err
		}
		return onProgress(ctx, Progress{Stage: StageDone, Done: 0, Total: len(items), Note: "no changes"})
	}

	if err := onProgress(ctx, Progress{Stage: StageFiltered, Total: len(batch)}); err != nil {
		return err
	}

	done := 0
	for start := 0; start < len(batch); start += batchSize {
		end := min(start+batchSize, len(batch))
		chunk := batch[start:end]

		if err := onProgress(ctx, Progress{Stage: StageIndexing, Done: done, Total: len(batch)}); err != nil {
			return err
		}

		if err := ix.indexBatch(ctx, chunk); err != nil {
			return err
		}

		done += len(chunk)
		if err := onProgress(ctx, Progress{Stage: StageIndexed, Done: done, Total: len(batch)}); err != nil {
			return err
		}
	}

	return onProgress(ctx, Progress{Stage: StageDone, Done: done, Total: len(batch)})
}

func (ix *Indexer) indexBatch(ctx context.Context, items []ingestmodel.Item) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}
	vectors, err := ix.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(items) {
		return fmt.Errorf("embedder returned %d vectors for %d items", len(vectors), len(items))
	}

	rows := make([]vectorstore.Row, len(items))
	records := make([]checksumstore.Record, len(items))
	for i, item := range items {
		rows[i] = vectorstore.Row{
			NodeID:    item.DocID,
			Text:      item.Text,
			Metadata:  stringifyMetadata(item.Metadata),
			Embedding: vectors[i],
		}
		records[i] = checksumstore.Record{DocID: item.DocID, Checksum: item.Checksum}
	}

	if err := ix.Vectors.Upsert(ctx, rows); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	// Checksums are only written once the vector upsert above has
	// succeeded: a crash between the two leaves vectors present and
	// checksums stale, which a subsequent run safely re-indexes.
	if err := ix.Checksums.UpsertMany(ctx, records); err != nil {
		return fmt.Errorf("upsert checksums: %w", err)
	}
	metrics.ItemsIndexed(len(items))
	return nil
}

// UpdateChecksums runs the checksum-update mode (C4.7): same iteration as
// Index but skips the embed+upsert stage and only refreshes checksums,
// unconditionally for every item passed in.
func (ix *Indexer) UpdateChecksums(ctx context.Context, items []ingestmodel.Item, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(context.Context, Progress) error { return nil }
	}
	if err := onProgress(ctx, Progress{Stage: "checksums", Total: len(items)}); err != nil {
		return err
	}
	records := make([]checksumstore.Record, len(items))
	for i, item := range items {
		records[i] = checksumstore.Record{DocID: item.DocID, Checksum: item.Checksum}
	}
	if err := ix.Checksums.UpsertMany(ctx, records); err != nil {
		return fmt.Errorf("upsert checksums: %w", err)
	}
	return onProgress(ctx, Progress{Stage: StageDone, Done: len(items), Total: len(items)})
}

func stringifyMetadata(md map[string]any) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
