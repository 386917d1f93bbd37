package checksumstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by a single table keyed by doc_id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. Call Ensure before first use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ensure(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS checksums (
  doc_id text PRIMARY KEY,
  checksum text NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);
`)
	if err != nil {
		return fmt.Errorf("ensure checksums table: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadMap(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc_id, checksum FROM checksums`)
	if err != nil {
		return nil, fmt.Errorf("load checksum map: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var docID, checksum string
		if err := rows.Scan(&docID, &checksum); err != nil {
			return nil, fmt.Errorf("scan checksum row: %w", err)
		}
		out[docID] = checksum
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertMany(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checksum upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	batch := make([][]any, 0, len(records))
	for _, r := range records {
		batch = append(batch, []any{r.DocID, r.Checksum, now})
	}
	for _, args := range batch {
		if _, err := tx.Exec(ctx, `
INSERT INTO checksums (doc_id, checksum, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (doc_id) DO UPDATE SET checksum = EXCLUDED.checksum, updated_at = EXCLUDED.updated_at
`, args...); err != nil {
			return fmt.Errorf("upsert checksum for %s: %w", args[0], err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checksum upsert tx: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
