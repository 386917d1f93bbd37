package sources

import (
	"context"

	"ingestcore/internal/ingestmodel"
)

// WebURLAdapter fetches a fixed, known set of URLs. Each becomes one item
// keyed by its own URL.
type WebURLAdapter struct {
	URLs []string
}

func (a *WebURLAdapter) Stream(ctx context.Context) (<-chan ingestmodel.Item, <-chan error) {
	return runStream(ctx, a.emit)
}

func (a *WebURLAdapter) emit(ctx context.Context, items chan<- ingestmodel.Item) error {
	fetcher := newPageFetcher()
	for _, u := range a.URLs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := fetcher.fetch(ctx, u)
		if err != nil {
			continue // individual fetch failures are skipped, not fatal
		}
		item := ingestmodel.NewItem(u, res.Markdown, map[string]any{
			ingestmodel.MetaSourceURL: u,
			ingestmodel.MetaTitle:     res.Title,
		})
		select {
		case items <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
