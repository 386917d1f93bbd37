// Command ingestord runs the ingestion daemon: it claims jobs from the
// configured Job Repository, materializes their item stream, dispatches to
// the incremental indexer or prune engine, and serves the job HTTP API and
// Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ingestcore/internal/artifactstore"
	"ingestcore/internal/checksumstore"
	"ingestcore/internal/config"
	"ingestcore/internal/embedding"
	"ingestcore/internal/httpapi"
	"ingestcore/internal/indexer"
	"ingestcore/internal/jobs"
	"ingestcore/internal/logging"
	"ingestcore/internal/pruner"
	"ingestcore/internal/vectorstore"
	"ingestcore/internal/version"
	"ingestcore/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("", "info")
		logging.Logger().Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.LogPath, cfg.LogLevel)
	logger := logging.Logger()
	logger.Info().Str("version", version.Version).Msg("ingestord starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("ingestord exited")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	vectors, err := vectorstore.Open(ctx, cfg.Vector)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer vectors.Close()

	artifacts, err := openArtifactStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	checksums, pgPool, err := openChecksumStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open checksum store: %w", err)
	}
	if err := checksums.Ensure(ctx); err != nil {
		return fmt.Errorf("ensure checksum store: %w", err)
	}

	jobBackend := jobs.NewMemoryBackend()
	queues := []string{"ingest", "checksum_update", "prune"}
	repos := make(map[string]jobs.Repository, len(queues))
	for _, q := range queues {
		repo, err := jobs.Open(cfg.Job, q, jobBackend, pgPool)
		if err != nil {
			return fmt.Errorf("open job repository %q: %w", q, err)
		}
		if err := repo.Ensure(ctx); err != nil {
			return fmt.Errorf("ensure job repository %q: %w", q, err)
		}
		repos[q] = repo
	}

	workerRepo, ok := repos[cfg.Worker.Queue]
	if !ok {
		return fmt.Errorf("worker queue %q has no repository", cfg.Worker.Queue)
	}

	embedder := embedding.NewClient(cfg.Embedding, cfg.Vector.Dimensions)
	ix := indexer.New(checksums, embedder, vectors)
	pr := pruner.New(vectors)

	loop := &worker.Loop{
		Repo:         workerRepo,
		Artifacts:    artifacts,
		Indexer:      ix,
		Pruner:       pr,
		DefaultExts:  cfg.IngestExts,
		GitHubToken:  cfg.GitHubToken,
		PollInterval: time.Duration(cfg.Worker.PollInterval) * time.Second,
		Logger:       logger,
	}
	go loop.Run(ctx)

	if cfg.Worker.ReaperEnabled {
		reaper := &jobs.Reaper{
			Repo:         workerRepo,
			LeaseTimeout: time.Duration(cfg.Worker.LeaseTimeout) * time.Second,
			Interval:     time.Duration(cfg.Worker.ReaperInterval) * time.Second,
			Logger:       logger,
		}
		go reaper.Run(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(repos, artifacts, cfg.IngestExts, cfg.GitHubToken))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func openArtifactStore(ctx context.Context, cfg config.Config) (artifactstore.Store, error) {
	switch cfg.Artifact.Backend {
	case "", "local":
		return artifactstore.NewLocalStore(cfg.Artifact.Dir)
	case "object-store", "s3":
		return artifactstore.NewS3Store(ctx, cfg.Artifact.S3)
	default:
		return nil, fmt.Errorf("unsupported artifact backend: %s", cfg.Artifact.Backend)
	}
}

// openChecksumStore reuses the vector store's postgres pool for checksums
// when the vector backend is postgres-backed, since both are durability
// choices for the same deployment; otherwise it falls back to memory.
func openChecksumStore(ctx context.Context, cfg config.Config) (checksumstore.Store, *pgxpool.Pool, error) {
	if cfg.Vector.Backend == "postgres" || cfg.Vector.Backend == "pgvector" {
		pool, err := vectorstore.OpenPool(ctx, cfg.Vector.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect checksum postgres pool: %w", err)
		}
		return checksumstore.NewPostgresStore(pool), pool, nil
	}
	return checksumstore.NewMemoryStore(), nil, nil
}
