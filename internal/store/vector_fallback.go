//go:build !sqlite_vec || !cgo

package store

import "context"

// vectorSearchImpl falls back to a brute-force cosine scan when built
// without cgo+sqlite_vec. This is a documented degraded mode (see
// SPEC_FULL.md §4.5), not a silent behavior change: callers get correct
// rankings, just without the vec0 index's speed.
func (s *Store) vectorSearchImpl(ctx context.Context, versionID int64, queryEmbedding []float32, topK int) ([]ScoredChunk, error) {
	return bruteForceVectorSearch(ctx, s.db, versionID, queryEmbedding, topK)
}

// EnsureVecIndex is a no-op in the pure-Go build; there is no vec0 table to create.
func (s *Store) EnsureVecIndex(ctx context.Context, versionID int64, dimensions int) error {
	return nil
}
