package vectorstore

import (
	"context"
	"fmt"

	"ingestcore/internal/config"
)

// Open resolves the configured vector backend into a ready Gateway.
func Open(ctx context.Context, cfg config.VectorConfig) (Gateway, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryGateway(cfg.Dimensions), nil
	case "postgres", "pgvector":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("vector backend postgres requires a DSN")
		}
		pool, err := OpenPool(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres vector store: %w", err)
		}
		return NewPostgresGateway(ctx, pool, cfg.Table, cfg.Dimensions, cfg.Metric)
	case "qdrant":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("vector backend qdrant requires a DSN")
		}
		return NewQdrantGateway(ctx, cfg.DSN, cfg.Collection, cfg.Dimensions, cfg.Metric)
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Backend)
	}
}
