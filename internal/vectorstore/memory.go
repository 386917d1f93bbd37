package vectorstore

import (
	"context"
	"strings"
	"sync"
)

// MemoryGateway is an in-process Gateway for tests and the memory backend
// mode. It never raises ErrDimensionMismatch, since there is no persisted
// schema to check against.
type MemoryGateway struct {
	mu         sync.RWMutex
	rows       map[string]Row
	dimensions int
}

// NewMemoryGateway returns an empty MemoryGateway that records the given
// embedding dimension; upserted rows are not checked against it.
func NewMemoryGateway(dimensions int) *MemoryGateway {
	return &MemoryGateway{rows: make(map[string]Row), dimensions: dimensions}
}

func (g *MemoryGateway) Upsert(ctx context.Context, rows []Row) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range rows {
		cp := r
		cp.Embedding = append([]float32(nil), r.Embedding...)
		md := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			md[k] = v
		}
		cp.Metadata = md
		g.rows[r.NodeID] = cp
	}
	return nil
}

func (g *MemoryGateway) Delete(ctx context.Context, nodeIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range nodeIDs {
		delete(g.rows, id)
	}
	return nil
}

func (g *MemoryGateway) ListNodeIDsByRepo(ctx context.Context, repos []string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	want := make(map[string]struct{}, len(repos))
	for _, r := range repos {
		want[r] = struct{}{}
	}
	var out []string
	for id, row := range g.rows {
		if _, ok := want[row.Metadata["repo"]]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (g *MemoryGateway) ListNodeIDsByPrefix(ctx context.Context, prefixes []string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for id := range g.rows {
		for _, p := range prefixes {
			if strings.HasPrefix(id, p) {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func (g *MemoryGateway) Dimension() int { return g.dimensions }

func (g *MemoryGateway) Close() error { return nil }

// Snapshot returns a copy of all rows currently stored, for test assertions.
func (g *MemoryGateway) Snapshot() map[string]Row {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]Row, len(g.rows))
	for k, v := range g.rows {
		out[k] = v
	}
	return out
}

var _ Gateway = (*MemoryGateway)(nil)
