package pruner

import (
	"context"
	"testing"

	"ingestcore/internal/ingestmodel"
	"ingestcore/internal/vectorstore"
)

func seedStore(t *testing.T, rows ...vectorstore.Row) *vectorstore.MemoryGateway {
	t.Helper()
	g := vectorstore.NewMemoryGateway(0)
	if err := g.Upsert(context.Background(), rows); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	return g
}

func TestPruneEmptyScopeFails(t *testing.T) {
	g := seedStore(t, vectorstore.Row{NodeID: "a"})
	p := New(g)
	manifest := ingestmodel.NewManifest(nil)
	err := p.Prune(context.Background(), manifest, Scope{}, nil)
	if err != ErrEmptyScope {
		t.Fatalf("expected ErrEmptyScope, got %v", err)
	}
}

func TestPruneAfterFileRemoval(t *testing.T) {
	// Prior store contains two items for repo R; new manifest contains
	// only R@A.md. Expect R@B.md deleted, R@A.md retained.
	g := seedStore(t,
		vectorstore.Row{NodeID: "R@A.md", Metadata: map[string]string{"repo": "R"}},
		vectorstore.Row{NodeID: "R@B.md", Metadata: map[string]string{"repo": "R"}},
	)
	manifest := ingestmodel.NewManifest([]ingestmodel.Item{
		ingestmodel.NewItem("R@A.md", "a", map[string]any{"repo": "R"}),
	})
	p := New(g)
	scope := Scope{MetadataRepoIn: []string{"R"}}
	if err := p.Prune(context.Background(), manifest, scope, nil); err != nil {
		t.Fatalf("prune: %v", err)
	}
	snap := g.Snapshot()
	if _, ok := snap["R@B.md"]; ok {
		t.Fatalf("expected R@B.md deleted")
	}
	if _, ok := snap["R@A.md"]; !ok {
		t.Fatalf("expected R@A.md retained")
	}
}

func TestPruneNeverDeletesOutsideCandidateSet(t *testing.T) {
	g := seedStore(t,
		vectorstore.Row{NodeID: "R@A.md", Metadata: map[string]string{"repo": "R"}},
		vectorstore.Row{NodeID: "Other@Z.md", Metadata: map[string]string{"repo": "Other"}},
	)
	manifest := ingestmodel.NewManifest(nil) // empty keep set: everything in scope is a delete candidate
	p := New(g)
	scope := Scope{MetadataRepoIn: []string{"R"}}
	if err := p.Prune(context.Background(), manifest, scope, nil); err != nil {
		t.Fatalf("prune: %v", err)
	}
	snap := g.Snapshot()
	if _, ok := snap["Other@Z.md"]; !ok {
		t.Fatalf("expected row outside scope to survive regardless of keep set")
	}
	if _, ok := snap["R@A.md"]; ok {
		t.Fatalf("expected in-scope, not-kept row deleted")
	}
}

func TestPruneByDocIDPrefix(t *testing.T) {
	g := seedStore(t,
		vectorstore.Row{NodeID: "docs/a.md"},
		vectorstore.Row{NodeID: "docs/b.md"},
		vectorstore.Row{NodeID: "src/main.go"},
	)
	manifest := ingestmodel.NewManifest(nil)
	p := New(g)
	scope := Scope{DocIDPrefixes: []string{"docs/"}}
	if err := p.Prune(context.Background(), manifest, scope, nil); err != nil {
		t.Fatalf("prune: %v", err)
	}
	snap := g.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected only src/main.go to survive, got %v", snap)
	}
	if _, ok := snap["src/main.go"]; !ok {
		t.Fatalf("expected src/main.go retained")
	}
}

func TestPruneMetadataRepoFromManifestUnion(t *testing.T) {
	g := seedStore(t,
		vectorstore.Row{NodeID: "R1@old.md", Metadata: map[string]string{"repo": "R1"}},
		vectorstore.Row{NodeID: "R1@new.md", Metadata: map[string]string{"repo": "R1"}},
	)
	manifest := ingestmodel.NewManifest([]ingestmodel.Item{
		ingestmodel.NewItem("R1@new.md", "x", map[string]any{"repo": "R1"}),
	})
	p := New(g)
	scope := Scope{MetadataRepoFromManifest: true}
	if err := p.Prune(context.Background(), manifest, scope, nil); err != nil {
		t.Fatalf("prune: %v", err)
	}
	snap := g.Snapshot()
	if _, ok := snap["R1@old.md"]; ok {
		t.Fatalf("expected stale row deleted")
	}
	if _, ok := snap["R1@new.md"]; !ok {
		t.Fatalf("expected manifest row retained")
	}
}

func TestPruneReportsProgress(t *testing.T) {
	rows := make([]vectorstore.Row, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, vectorstore.Row{NodeID: string(rune('a' + i)), Metadata: map[string]string{"repo": "R"}})
	}
	g := seedStore(t, rows...)
	manifest := ingestmodel.NewManifest(nil)
	p := New(g)
	var lastProgress Progress
	calls := 0
	err := p.Prune(context.Background(), manifest, Scope{MetadataRepoIn: []string{"R"}}, func(_ context.Context, pr Progress) error {
		calls++
		lastProgress = pr
		return nil
	})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if calls < 2 {
		t.Fatalf("expected at least an initial and final progress call, got %d", calls)
	}
	if lastProgress.Done != 5 || lastProgress.Total != 5 {
		t.Fatalf("expected final progress done=5 total=5, got %+v", lastProgress)
	}
}

func TestPruneCancellationAbortsViaProgressError(t *testing.T) {
	g := seedStore(t, vectorstore.Row{NodeID: "a", Metadata: map[string]string{"repo": "R"}})
	manifest := ingestmodel.NewManifest(nil)
	p := New(g)
	cancelErr := context.Canceled
	err := p.Prune(context.Background(), manifest, Scope{MetadataRepoIn: []string{"R"}}, func(context.Context, Progress) error {
		return cancelErr
	})
	if err != cancelErr {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}
