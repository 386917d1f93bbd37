package embedding

import (
	"context"
	"sync"
	"time"

	"ingestcore/internal/config"
)

// Embedder converts item text into embedding vectors, one per input.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
	Ping(ctx context.Context) error
}

// clientEmbedder wraps EmbedText for the configured HTTP endpoint. It sends
// one item per request to avoid batch-inference quirks in small embedding
// servers, with an optional minimum delay between calls.
type clientEmbedder struct {
	cfg       config.EmbeddingConfig
	dim       int
	batchSize int
	mu        sync.Mutex
	lastCall  time.Time
	minDelay  time.Duration
}

// NewClient constructs an Embedder backed by the configured embedding
// endpoint.
func NewClient(cfg config.EmbeddingConfig, dim int) Embedder {
	return &clientEmbedder{cfg: cfg, dim: dim, batchSize: 1}
}

func (c *clientEmbedder) Name() string   { return c.cfg.Model }
func (c *clientEmbedder) Dimension() int { return c.dim }

func (c *clientEmbedder) Ping(ctx context.Context) error {
	return CheckReachability(ctx, c.cfg)
}

func (c *clientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= c.batchSize {
		return c.rateLimitedCall(ctx, texts)
	}
	var out [][]float32
	for i := 0; i < len(texts); i += c.batchSize {
		end := min(i+c.batchSize, len(texts))
		embeddings, err := c.rateLimitedCall(ctx, texts[i:end])
		if err != nil {
			return out, err
		}
		out = append(out, embeddings...)
	}
	return out, nil
}

func (c *clientEmbedder) rateLimitedCall(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	if !c.lastCall.IsZero() {
		if elapsed := time.Since(c.lastCall); elapsed < c.minDelay {
			time.Sleep(c.minDelay - elapsed)
		}
	}
	c.lastCall = time.Now()
	c.mu.Unlock()
	return EmbedText(ctx, c.cfg, texts)
}

var _ Embedder = (*clientEmbedder)(nil)
