package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ingestcore/internal/ingestmodel"
)

// LocalDirAdapter streams every allowed text file beneath a directory
// already present on disk, with no git involvement. RepoURL, if set (e.g.
// a working checkout of a known repo), is used as the doc_id prefix and
// the repo metadata value; otherwise Path is used for both.
type LocalDirAdapter struct {
	Path    string
	RepoURL string
	Exts    []string
}

func (a *LocalDirAdapter) Stream(ctx context.Context) (<-chan ingestmodel.Item, <-chan error) {
	return runStream(ctx, a.emit)
}

func (a *LocalDirAdapter) emit(ctx context.Context, items chan<- ingestmodel.Item) error {
	root := a.RepoURL
	if root == "" {
		root = a.Path
	}

	return filepath.Walk(a.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !hasAllowedExt(path, a.Exts) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil || !looksLikeText(data) {
			return nil
		}

		relPath, err := filepath.Rel(a.Path, path)
		if err != nil {
			relPath = path
		}

		docID := fmt.Sprintf("%s@%s", root, filepath.ToSlash(relPath))
		item := ingestmodel.NewItem(docID, string(data), map[string]any{
			ingestmodel.MetaRepo:     root,
			ingestmodel.MetaFilePath: filepath.ToSlash(relPath),
		})

		select {
		case items <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}
