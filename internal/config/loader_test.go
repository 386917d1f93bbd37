package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Vector.Backend != "memory" {
		t.Fatalf("expected default vector backend memory, got %q", cfg.Vector.Backend)
	}
	if cfg.Worker.Queue != "ingest" {
		t.Fatalf("expected default queue ingest, got %q", cfg.Worker.Queue)
	}
	if len(cfg.IngestExts) == 0 {
		t.Fatalf("expected default ingest extensions")
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("VECTOR_BACKEND", "postgres")
	os.Setenv("EMBED_DIM", "1536")
	os.Setenv("WORKER_QUEUE_TYPE", "prune")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Vector.Backend != "postgres" {
		t.Fatalf("expected postgres backend, got %q", cfg.Vector.Backend)
	}
	if cfg.Vector.Dimensions != 1536 {
		t.Fatalf("expected dimensions 1536, got %d", cfg.Vector.Dimensions)
	}
	if cfg.Worker.Queue != "prune" {
		t.Fatalf("expected queue prune, got %q", cfg.Worker.Queue)
	}
}
