package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGateway is a Gateway backed by pgvector. If the embeddings table
// is absent, NewPostgresGateway creates it at construction, before any
// write; if it already exists its declared dimension must match the
// configured one.
type PostgresGateway struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
	metric     string
}

var dimensionPattern = regexp.MustCompile(`vector\((\d+)\)`)

// NewPostgresGateway verifies or creates the embeddings table and returns a
// ready Gateway. It fails fast with ErrDimensionMismatch if the table
// exists with a different declared dimension than dimensions.
func NewPostgresGateway(ctx context.Context, pool *pgxpool.Pool, table string, dimensions int, metric string) (*PostgresGateway, error) {
	if table == "" {
		table = "embeddings"
	}
	g := &PostgresGateway{pool: pool, table: table, dimensions: dimensions, metric: strings.ToLower(strings.TrimSpace(metric))}
	if err := g.checkOrCreate(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *PostgresGateway) checkOrCreate(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	var declared string
	err := g.pool.QueryRow(ctx, `
SELECT format_type(a.atttypid, a.atttypmod)
FROM pg_attribute a
WHERE a.attrelid = $1::regclass AND a.attname = 'embedding' AND NOT a.attisdropped
`, g.table).Scan(&declared)
	if err != nil {
		// Table (or column) does not exist yet; create it now.
		vecType := "vector"
		if g.dimensions > 0 {
			vecType = fmt.Sprintf("vector(%d)", g.dimensions)
		}
		_, err := g.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  node_id TEXT PRIMARY KEY,
  text TEXT NOT NULL DEFAULT '',
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  embedding %s
);
`, g.table, vecType))
		if err != nil {
			return fmt.Errorf("create embeddings table: %w", err)
		}
		return nil
	}
	match := dimensionPattern.FindStringSubmatch(declared)
	if match == nil {
		return nil
	}
	existing, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	if g.dimensions > 0 && existing != g.dimensions {
		return fmt.Errorf("%w: table %q declares dimension %d, configured embed_dim is %d",
			ErrDimensionMismatch, g.table, existing, g.dimensions)
	}
	return nil
}

func (g *PostgresGateway) Upsert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)
	query := fmt.Sprintf(`
INSERT INTO %s (node_id, text, metadata, embedding) VALUES ($1, $2, $3, $4::vector)
ON CONFLICT (node_id) DO UPDATE SET text = EXCLUDED.text, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
`, g.table)
	for _, r := range rows {
		if _, err := tx.Exec(ctx, query, r.NodeID, r.Text, r.Metadata, toVectorLiteral(r.Embedding)); err != nil {
			return fmt.Errorf("upsert row %s: %w", r.NodeID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

func (g *PostgresGateway) Delete(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	_, err := g.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE node_id = ANY($1)`, g.table), nodeIDs)
	if err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}
	return nil
}

func (g *PostgresGateway) ListNodeIDsByRepo(ctx context.Context, repos []string) ([]string, error) {
	if len(repos) == 0 {
		return nil, nil
	}
	rows, err := g.pool.Query(ctx, fmt.Sprintf(`SELECT node_id FROM %s WHERE metadata->>'repo' = ANY($1)`, g.table), repos)
	if err != nil {
		return nil, fmt.Errorf("list by repo: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (g *PostgresGateway) ListNodeIDsByPrefix(ctx context.Context, prefixes []string) ([]string, error) {
	if len(prefixes) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range prefixes {
		rows, err := g.pool.Query(ctx, fmt.Sprintf(`SELECT node_id FROM %s WHERE node_id LIKE $1`, g.table), p+"%")
		if err != nil {
			return nil, fmt.Errorf("list by prefix %q: %w", p, err)
		}
		ids, err := scanIDs(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func scanIDs(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]string, error) {
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (g *PostgresGateway) Dimension() int { return g.dimensions }

func (g *PostgresGateway) Close() error {
	g.pool.Close()
	return nil
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	b := strings.Builder{}
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%g", x))
	}
	b.WriteByte(']')
	return b.String()
}

var _ Gateway = (*PostgresGateway)(nil)
