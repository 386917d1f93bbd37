package indexer

import (
	"context"
	"testing"

	"ingestcore/internal/checksumstore"
	"ingestcore/internal/embedding"
	"ingestcore/internal/ingestmodel"
	"ingestcore/internal/vectorstore"
)

func newTestIndexer() (*Indexer, *checksumstore.MemoryStore, *vectorstore.MemoryGateway) {
	cs := checksumstore.NewMemoryStore()
	vs := vectorstore.NewMemoryGateway(64)
	emb := embedding.NewDeterministic(64, true, 1)
	return New(cs, emb, vs), cs, vs
}

func oneFileRepoItem() ingestmodel.Item {
	return ingestmodel.NewItem(
		"https://host/ORG/REPO@README.md",
		"hello\n",
		map[string]any{"repo": "https://host/ORG/REPO", "file_path": "README.md"},
	)
}

func TestIndexFirstIngestOfOneFileRepo(t *testing.T) {
	ix, cs, vs := newTestIndexer()
	ctx := context.Background()
	item := oneFileRepoItem()

	var stages []Stage
	var final Progress
	err := ix.Index(ctx, []ingestmodel.Item{item}, false, func(_ context.Context, p Progress) error {
		stages = append(stages, p.Stage)
		final = p
		return nil
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if final.Stage != StageDone || final.Total != 1 || final.Done != 1 {
		t.Fatalf("expected done total=1 done=1, got %+v", final)
	}

	snap := vs.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected exactly one vector row, got %d", len(snap))
	}
	if _, ok := snap[item.DocID]; !ok {
		t.Fatalf("expected vector row keyed by doc id %q", item.DocID)
	}

	m, err := cs.LoadMap(ctx)
	if err != nil {
		t.Fatalf("load checksum map: %v", err)
	}
	if m[item.DocID] != item.Checksum {
		t.Fatalf("expected checksum row for %q", item.DocID)
	}
}

func TestIndexIdempotentReingestIsNoOp(t *testing.T) {
	ix, cs, vs := newTestIndexer()
	ctx := context.Background()
	item := oneFileRepoItem()

	if err := ix.Index(ctx, []ingestmodel.Item{item}, false, nil); err != nil {
		t.Fatalf("first index: %v", err)
	}
	beforeVectors := vs.Snapshot()
	beforeChecksums, _ := cs.LoadMap(ctx)

	var final Progress
	err := ix.Index(ctx, []ingestmodel.Item{item}, false, func(_ context.Context, p Progress) error {
		final = p
		return nil
	})
	if err != nil {
		t.Fatalf("second index: %v", err)
	}
	if final.Stage != StageDone || final.Total != 1 || final.Done != 0 || final.Note != "no changes" {
		t.Fatalf("expected no-op done progress with total=scanned, got %+v", final)
	}

	afterVectors := vs.Snapshot()
	afterChecksums, _ := cs.LoadMap(ctx)
	if len(afterVectors) != len(beforeVectors) {
		t.Fatalf("expected zero additional vector writes")
	}
	if len(afterChecksums) != len(beforeChecksums) {
		t.Fatalf("expected zero additional checksum writes")
	}
}

func TestIndexForcedReingestRewritesUnchangedItem(t *testing.T) {
	ix, cs, vs := newTestIndexer()
	ctx := context.Background()
	item := oneFileRepoItem()

	if err := ix.Index(ctx, []ingestmodel.Item{item}, false, nil); err != nil {
		t.Fatalf("first index: %v", err)
	}

	var final Progress
	err := ix.Index(ctx, []ingestmodel.Item{item}, true, func(_ context.Context, p Progress) error {
		final = p
		return nil
	})
	if err != nil {
		t.Fatalf("forced index: %v", err)
	}
	if final.Stage != StageDone || final.Total != 1 || final.Done != 1 {
		t.Fatalf("expected forced done total=1 done=1, got %+v", final)
	}

	snap := vs.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one vector row after forced reindex, got %d", len(snap))
	}
	m, _ := cs.LoadMap(ctx)
	if m[item.DocID] != item.Checksum {
		t.Fatalf("expected checksum still present after forced reindex")
	}
}

func TestIndexSkipsOnlyUnchangedItems(t *testing.T) {
	ix, _, vs := newTestIndexer()
	ctx := context.Background()
	a := ingestmodel.NewItem("a", "alpha", nil)
	b := ingestmodel.NewItem("b", "beta", nil)

	if err := ix.Index(ctx, []ingestmodel.Item{a, b}, false, nil); err != nil {
		t.Fatalf("first index: %v", err)
	}

	// Change only b's text (and therefore checksum).
	bChanged := ingestmodel.NewItem("b", "beta-changed", nil)
	var filteredTotal int
	err := ix.Index(ctx, []ingestmodel.Item{a, bChanged}, false, func(_ context.Context, p Progress) error {
		if p.Stage == StageFiltered {
			filteredTotal = p.Total
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second index: %v", err)
	}
	if filteredTotal != 1 {
		t.Fatalf("expected exactly 1 item to need reindexing, got %d", filteredTotal)
	}
	snap := vs.Snapshot()
	if snap["b"].Text != "beta-changed" {
		t.Fatalf("expected b's vector row text updated, got %q", snap["b"].Text)
	}
}

func TestIndexCancellationAbortsViaProgressError(t *testing.T) {
	ix, _, _ := newTestIndexer()
	ctx := context.Background()
	items := make([]ingestmodel.Item, 0, 3)
	for i := 0; i < 3; i++ {
		items = append(items, ingestmodel.NewItem(string(rune('a'+i)), "text", nil))
	}
	cancelErr := context.Canceled
	err := ix.Index(ctx, items, false, func(_ context.Context, p Progress) error {
		if p.Stage == StageIndexing {
			return cancelErr
		}
		return nil
	})
	if err != cancelErr {
		t.Fatalf("expected cancellation error to propagate, got %v", err)
	}
}

func TestUpdateChecksumsOnlyRefreshesChecksums(t *testing.T) {
	ix, cs, vs := newTestIndexer()
	ctx := context.Background()
	item := oneFileRepoItem()

	if err := ix.UpdateChecksums(ctx, []ingestmodel.Item{item}, nil); err != nil {
		t.Fatalf("update checksums: %v", err)
	}
	if len(vs.Snapshot()) != 0 {
		t.Fatalf("expected checksum-update mode to write no vectors")
	}
	m, _ := cs.LoadMap(ctx)
	if m[item.DocID] != item.Checksum {
		t.Fatalf("expected checksum recorded for %q", item.DocID)
	}
}
