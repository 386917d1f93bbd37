// Package pruner implements the prune engine (C8): scoped reconciliation of
// the vector store against a fresh manifest, deleting rows whose logical
// source is no longer present without ever touching rows outside the
// requested scope.
package pruner

import (
	"context"
	"errors"
	"fmt"

	"ingestcore/internal/ingestmodel"
	"ingestcore/internal/metrics"
	"ingestcore/internal/vectorstore"
)

// ErrEmptyScope is returned when a Scope carries no active selector. This
// guards against accidentally deleting the entire store.
var ErrEmptyScope = errors.New("pruner: empty scope is not allowed")

// Scope selects the candidate rows a prune pass may delete. Any combination
// of selectors may be active; candidates are the union of all active
// selectors' matches.
type Scope struct {
	MetadataRepoIn           []string
	MetadataRepoFromManifest bool
	DocIDPrefixes            []string
	DocIDInFromManifest      bool
}

func (s Scope) active() bool {
	return len(s.MetadataRepoIn) > 0 || s.MetadataRepoFromManifest ||
		len(s.DocIDPrefixes) > 0 || s.DocIDInFromManifest
}

// Progress reports batch-level deletion progress.
type Progress struct {
	Done  int
	Total int
}

// ProgressFunc is invoked once with Done=0 before deletion starts and then
// once per delete batch; it also doubles as the cancellation checkpoint.
type ProgressFunc func(ctx context.Context, p Progress) error

// Pruner reconciles a vectorstore.Gateway against a manifest under a Scope.
type Pruner struct {
	Vectors vectorstore.Gateway
}

// New constructs a Pruner bound to a vector gateway.
func New(vectors vectorstore.Gateway) *Pruner {
	return &Pruner{Vectors: vectors}
}

// deleteBatchSize bounds how many rows are deleted per round trip so
// progress can be reported and cancellation observed between batches.
const deleteBatchSize = 1000

// Prune computes candidate_set \ keep_set and deletes the result in
// batches. It refuses to run against an empty scope.
func (p *Pruner) Prune(ctx context.Context, manifest ingestmodel.Manifest, scope Scope, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(context.Context, Progress) error { return nil }
	}
	if !scope.active() {
		return ErrEmptyScope
	}

	keepSet := manifest.KeepSet()

	candidates, err := p.candidateSet(ctx, manifest, scope)
	if err != nil {
		return fmt.Errorf("build candidate set: %w", err)
	}

	var deleteSet []string
	for id := range candidates {
		if _, keep := keepSet[id]; !keep {
			deleteSet = append(deleteSet, id)
		}
	}

	if err := onProgress(ctx, Progress{Done: 0, Total: len(deleteSet)}); err != nil {
		return err
	}

	done := 0
	for start := 0; start < len(deleteSet); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(deleteSet))
		batch := deleteSet[start:end]
		if err := p.Vectors.Delete(ctx, batch); err != nil {
			metrics.PruneErrors()
			return fmt.Errorf("delete batch: %w", err)
		}
		metrics.PruneDeleted(len(batch))
		done += len(batch)
		if err := onProgress(ctx, Progress{Done: done, Total: len(deleteSet)}); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pruner) candidateSet(ctx context.Context, manifest ingestmodel.Manifest, scope Scope) (map[string]struct{}, error) {
	candidates := make(map[string]struct{})

	repos := append([]string{}, scope.MetadataRepoIn...)
	if scope.MetadataRepoFromManifest {
		repos = append(repos, manifest.Repos()...)
	}
	if len(repos) > 0 {
		ids, err := p.Vectors.ListNodeIDsByRepo(ctx, repos)
		if err != nil {
			return nil, fmt.Errorf("list by repo: %w", err)
		}
		for _, id := range ids {
			candidates[id] = struct{}{}
		}
	}

	if len(scope.DocIDPrefixes) > 0 {
		ids, err := p.Vectors.ListNodeIDsByPrefix(ctx, scope.DocIDPrefixes)
		if err != nil {
			return nil, fmt.Errorf("list by prefix: %w", err)
		}
		for _, id := range ids {
			candidates[id] = struct{}{}
		}
	}

	if scope.DocIDInFromManifest {
		for id := range manifest.KeepSet() {
			candidates[id] = struct{}{}
		}
	}

	return candidates, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
