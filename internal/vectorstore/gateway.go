// Package vectorstore implements the Vector Store Gateway (C6): dimension
// verification at startup, upsert/delete of rows keyed by node_id, and the
// scoped row listing the Prune Engine needs to build its candidate set.
// Modeled on the teacher's persistence/databases VectorStore abstraction,
// narrowed to this service's contract (no similarity search: the vector
// store's own ANN query engine is out of scope here).
package vectorstore

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when the embedding table already exists
// with a declared vector dimension different from the configured embed_dim.
// It is a fatal precondition: callers must not attempt any write.
var ErrDimensionMismatch = errors.New("vectorstore: embedding dimension mismatch")

// Row is a single vector row, keyed by NodeID (= Item.DocID).
type Row struct {
	NodeID    string
	Text      string
	Metadata  map[string]string
	Embedding []float32
}

// Gateway upserts and deletes vector rows and lists candidates for pruning.
// Implementations must verify the configured dimension against any
// pre-existing table at construction time and fail fast on mismatch.
type Gateway interface {
	// Upsert writes or replaces rows keyed by NodeID. Last writer wins.
	Upsert(ctx context.Context, rows []Row) error

	// Delete removes rows by NodeID. Deleting an absent id is a no-op.
	Delete(ctx context.Context, nodeIDs []string) error

	// ListNodeIDsByRepo returns NodeIDs of rows whose metadata.repo is one
	// of repos.
	ListNodeIDsByRepo(ctx context.Context, repos []string) ([]string, error)

	// ListNodeIDsByPrefix returns NodeIDs of rows whose NodeID begins with
	// any of prefixes.
	ListNodeIDsByPrefix(ctx context.Context, prefixes []string) ([]string, error)

	// Dimension reports the configured embedding dimension.
	Dimension() int

	// Close releases any underlying connection resources.
	Close() error
}
