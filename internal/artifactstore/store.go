// Package artifactstore implements the manifest blob abstraction (C2):
// each manifest is stored under a fresh opaque (uuid) key, not a content
// hash. It decouples manifest producers (front-end pre-materialization, worker inline materialization) from consumers
// (worker jobs referencing an artifact_key). It is modeled on the
// teacher's internal/objectstore abstraction: a narrow interface with
// local and S3-backed implementations behind the same contract.
package artifactstore

import (
	"context"
	"errors"

	"ingestcore/internal/ingestmodel"
)

// ErrNotFound is returned by Get when no manifest exists for the given key.
var ErrNotFound = errors.New("artifactstore: manifest not found")

// Store puts and gets immutable manifest blobs. Implementations must be
// crash-safe: a key returned by Put refers to a fully written blob.
type Store interface {
	Put(ctx context.Context, manifest ingestmodel.Manifest) (key string, err error)
	Get(ctx context.Context, key string) (ingestmodel.Manifest, error)
}
