package artifactstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"ingestcore/internal/ingestmodel"
)

// LocalStore persists manifests as files under a directory, one file per
// key, named manifest-<key>.json. Writes go to a temp file in the same
// directory and are renamed into place, so a reader never observes a
// partially written blob — the same pattern the teacher's ingestion
// checkpoint writer uses for crash-safe local persistence.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the backing directory if needed and returns a
// LocalStore rooted there.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, "manifest-"+key+".json")
}

// Put writes the manifest to a fresh key and returns it.
func (s *LocalStore) Put(ctx context.Context, manifest ingestmodel.Manifest) (string, error) {
	key := uuid.NewString()
	data, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	final := s.path(key)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest temp: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename manifest into place: %w", err)
	}
	return key, nil
}

// Get reads the manifest stored under key.
func (s *LocalStore) Get(ctx context.Context, key string) (ingestmodel.Manifest, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ingestmodel.Manifest{}, ErrNotFound
		}
		return ingestmodel.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m ingestmodel.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return ingestmodel.Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

var _ Store = (*LocalStore)(nil)
