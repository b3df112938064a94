package job

import (
	"context"

	"docnerd/internal/store"
)

// StoreAdapter implements JobStore (and ManagerStore) over a *store.Store,
// translating between this package's transport-agnostic ScrapeResult and
// the store's own Chunk/ChunkMetadata shape. Kept as a thin translation
// layer so internal/job never imports internal/store for its own types.
type StoreAdapter struct {
	*store.Store
}

func NewStoreAdapter(s *store.Store) *StoreAdapter {
	return &StoreAdapter{Store: s}
}

func (a *StoreAdapter) AddScrapeResult(ctx context.Context, versionID int64, depth int, result ScrapeResult) (int64, error) {
	return a.Store.AddScrapeResult(ctx, versionID, depth, toStoreScrapeResult(result))
}

func toStoreScrapeResult(r ScrapeResult) store.ScrapeResult {
	chunks := make([]store.Chunk, len(r.Chunks))
	for i, c := range r.Chunks {
		chunks[i] = store.Chunk{
			Content: c.Content,
			Metadata: store.ChunkMetadata{
				Level:        c.Level,
				Path:         c.Path,
				Types:        c.Types,
				BoundaryType: c.BoundaryType,
			},
			SortOrder: i,
		}
	}
	return store.ScrapeResult{
		URL:          r.URL,
		Title:        r.Title,
		ContentType:  r.ContentType,
		TextContent:  r.TextContent,
		ETag:         r.ETag,
		LastModified: r.LastModified,
		Chunks:       chunks,
	}
}
