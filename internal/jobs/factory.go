package jobs

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ingestcore/internal/config"
)

// Open resolves the configured job backend into a Repository scoped to
// queue. For the memory backend, backend is shared across calls sharing
// the same *MemoryBackend instance.
func Open(cfg config.JobConfig, queue string, memoryBackend *MemoryBackend, pool *pgxpool.Pool) (Repository, error) {
	switch cfg.Backend {
	case "", "memory":
		if memoryBackend == nil {
			memoryBackend = NewMemoryBackend()
		}
		return memoryBackend.Repository(queue), nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("job backend postgres requires a connection pool")
		}
		return NewPostgresRepository(pool, queue), nil
	default:
		return nil, fmt.Errorf("unsupported job backend: %s", cfg.Backend)
	}
}
