// Package checksumstore implements the persistent doc_id -> checksum map
// (C3) shared read by the Indexer and written only by the Indexer and the
// Checksum-Update path. Modeled on the teacher's persistence/databases
// vector store package: a narrow interface with postgres and in-memory
// implementations behind the same contract.
package checksumstore

import "context"

// Record pairs a document id with the checksum last observed for it.
type Record struct {
	DocID    string
	Checksum string
}

// Store is the persistent map doc_id -> checksum.
type Store interface {
	// Ensure creates backing schema/state if it does not already exist.
	Ensure(ctx context.Context) error

	// LoadMap returns a snapshot of the full doc_id -> checksum map.
	LoadMap(ctx context.Context) (map[string]string, error)

	// UpsertMany writes or updates checksum records for a batch of items.
	// Concurrent callers upserting disjoint or overlapping doc_ids is safe;
	// the last writer for a given doc_id wins.
	UpsertMany(ctx context.Context, records []Record) error
}
