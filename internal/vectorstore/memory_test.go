package vectorstore

import (
	"context"
	"sort"
	"testing"
)

func TestMemoryGatewayUpsertAndSnapshot(t *testing.T) {
	g := NewMemoryGateway(3)
	ctx := context.Background()
	err := g.Upsert(ctx, []Row{
		{NodeID: "repo@a.md", Text: "a", Metadata: map[string]string{"repo": "repo"}, Embedding: []float32{1, 2, 3}},
		{NodeID: "repo@b.md", Text: "b", Metadata: map[string]string{"repo": "repo"}, Embedding: []float32{4, 5, 6}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	snap := g.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(snap))
	}
}

func TestMemoryGatewayDeleteIsIdempotent(t *testing.T) {
	g := NewMemoryGateway(0)
	ctx := context.Background()
	_ = g.Upsert(ctx, []Row{{NodeID: "a"}})
	if err := g.Delete(ctx, []string{"a"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := g.Delete(ctx, []string{"a"}); err != nil {
		t.Fatalf("delete absent id should be a no-op: %v", err)
	}
	if len(g.Snapshot()) != 0 {
		t.Fatalf("expected empty store after delete")
	}
}

func TestMemoryGatewayListNodeIDsByRepo(t *testing.T) {
	g := NewMemoryGateway(0)
	ctx := context.Background()
	_ = g.Upsert(ctx, []Row{
		{NodeID: "R1@a.md", Metadata: map[string]string{"repo": "R1"}},
		{NodeID: "R1@b.md", Metadata: map[string]string{"repo": "R1"}},
		{NodeID: "R2@a.md", Metadata: map[string]string{"repo": "R2"}},
	})
	ids, err := g.ListNodeIDsByRepo(ctx, []string{"R1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "R1@a.md" || ids[1] != "R1@b.md" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestMemoryGatewayListNodeIDsByPrefix(t *testing.T) {
	g := NewMemoryGateway(0)
	ctx := context.Background()
	_ = g.Upsert(ctx, []Row{
		{NodeID: "docs/a.md"},
		{NodeID: "docs/b.md"},
		{NodeID: "src/main.go"},
	})
	ids, err := g.ListNodeIDsByPrefix(ctx, []string{"docs/"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "docs/a.md" || ids[1] != "docs/b.md" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestMemoryGatewayUpsertOverwritesExisting(t *testing.T) {
	g := NewMemoryGateway(0)
	ctx := context.Background()
	_ = g.Upsert(ctx, []Row{{NodeID: "a", Text: "old"}})
	_ = g.Upsert(ctx, []Row{{NodeID: "a", Text: "new"}})
	snap := g.Snapshot()
	if snap["a"].Text != "new" {
		t.Fatalf("expected overwritten text, got %q", snap["a"].Text)
	}
}
