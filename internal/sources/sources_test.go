package sources

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"ingestcore/internal/ingestmodel"
)

func drain(t *testing.T, items <-chan ingestmodel.Item, errs <-chan error) []ingestmodel.Item {
	t.Helper()
	var got []ingestmodel.Item
	for items != nil || errs != nil {
		select {
		case item, ok := <-items:
			if !ok {
				items = nil
				continue
			}
			got = append(got, item)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				t.Fatalf("unexpected stream error: %v", err)
			}
		}
	}
	return got
}

func TestSpecValidateRequiresTypeSpecificFields(t *testing.T) {
	cases := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"github_repo missing repo", Spec{Type: TypeGitHubRepo}, true},
		{"github_repo ok", Spec{Type: TypeGitHubRepo, Repo: "https://example.com/r.git"}, false},
		{"github_org missing org", Spec{Type: TypeGitHubOrg}, true},
		{"github_issues missing repo", Spec{Type: TypeGitHubIssues}, true},
		{"local_dir missing path", Spec{Type: TypeLocalDir}, true},
		{"local_dir ok", Spec{Type: TypeLocalDir, Path: "/tmp"}, false},
		{"web_url missing urls", Spec{Type: TypeWebURL}, true},
		{"website missing start_urls", Spec{Type: TypeWebsite}, true},
		{"sitemap missing url", Spec{Type: TypeSitemap}, true},
		{"unknown type", Spec{Type: "carrier_pigeon"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.spec.Validate()
			if c.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !c.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuildDispatchesToExpectedAdapterType(t *testing.T) {
	a, err := Build(Spec{Type: TypeLocalDir, Path: "/tmp"}, nil, "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := a.(*LocalDirAdapter); !ok {
		t.Fatalf("expected *LocalDirAdapter, got %T", a)
	}
}

func TestLocalDirAdapterStreamsAllowedFilesOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "# hello")
	writeFile(t, filepath.Join(dir, "b.bin"), "\x00\x01\x02binary")
	writeFile(t, filepath.Join(dir, "sub", "c.md"), "nested")

	a := &LocalDirAdapter{Path: dir, RepoURL: "local://docs", Exts: []string{".md"}}
	items := drain(t, a.Stream(context.Background()))

	var docIDs []string
	for _, it := range items {
		docIDs = append(docIDs, it.DocID)
	}
	sort.Strings(docIDs)

	want := []string{"local://docs@a.md", "local://docs@sub/c.md"}
	if len(docIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, docIDs)
	}
	for i := range want {
		if docIDs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, docIDs)
		}
	}
}

func TestLocalDirAdapterEachItemChecksumMatchesContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "note.txt"), "ingest me")

	a := &LocalDirAdapter{Path: dir, Exts: []string{".txt"}}
	items := drain(t, a.Stream(context.Background()))
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Checksum != ingestmodel.Checksum("ingest me") {
		t.Fatalf("checksum mismatch")
	}
	if !items[0].Valid() {
		t.Fatalf("expected item to be valid")
	}
}

func TestLocalDirAdapterEmptyExtsAllowsEverything(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.go"), "package main")
	writeFile(t, filepath.Join(dir, "y.py"), "print(1)")

	a := &LocalDirAdapter{Path: dir}
	items := drain(t, a.Stream(context.Background()))
	if len(items) != 2 {
		t.Fatalf("expected 2 items with no ext filter, got %d", len(items))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
