// Package retrieval implements hybrid vector+FTS search and content-aware
// chunk reassembly over an internal/store.Store.
package retrieval

import (
	"context"
	"sort"

	"docnerd/internal/config"
	"docnerd/internal/embedding"
	"docnerd/internal/logging"
	"docnerd/internal/store"
)

// candidateStore is the subset of *store.Store the hybrid ranker needs.
// Narrowed to an interface so tests can fake it without a real database.
type candidateStore interface {
	VectorSearch(ctx context.Context, versionID int64, queryEmbedding []float32, topK int) ([]store.ScoredChunk, error)
	FTSSearch(ctx context.Context, versionID int64, query string, topK int) ([]store.ScoredChunk, error)
}

// RankedChunk is one fused hybrid-search hit, before context assembly.
type RankedChunk struct {
	ChunkID int64
	Score   float64
}

// HybridSearch computes the query embedding, retrieves oversampled candidate
// pools from both rankers, fuses them via Reciprocal Rank Fusion, and returns
// the top `limit` chunk ids ordered by fused score (ties broken by chunk id,
// per §8 property S6).
func HybridSearch(ctx context.Context, s candidateStore, engine embedding.Engine, cfg config.RetrievalConfig, versionID int64, query string, limit int) ([]RankedChunk, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "HybridSearch")
	defer timer.Stop()

	queryVec, err := engine.Embed(ctx, query, embedding.ModeQuery)
	if err != nil {
		return nil, err
	}

	vecResults, err := s.VectorSearch(ctx, versionID, queryVec, limit*cfg.VectorMultiplier)
	if err != nil {
		return nil, err
	}
	ftsResults, err := s.FTSSearch(ctx, versionID, query, limit*cfg.FTSOverfetch)
	if err != nil {
		return nil, err
	}

	return fuse(vecResults, ftsResults, cfg, limit), nil
}

// fuse merges two ranked candidate lists via RRF:
// score(d) = w_vec/(k_rrf + rank_vec(d)) + w_fts/(k_rrf + rank_fts(d)),
// with a chunk absent from a list treated as having infinite rank there
// (contributing zero to that term).
func fuse(vecResults, ftsResults []store.ScoredChunk, cfg config.RetrievalConfig, limit int) []RankedChunk {
	vecRank := rankOf(vecResults)
	ftsRank := rankOf(ftsResults)

	scores := make(map[int64]float64, len(vecRank)+len(ftsRank))
	for id := range vecRank {
		scores[id] = 0
	}
	for id := range ftsRank {
		scores[id] = 0
	}

	k := float64(cfg.RRFK)
	for id := range scores {
		var s float64
		if r, ok := vecRank[id]; ok {
			s += cfg.VectorWeight / (k + float64(r))
		}
		if r, ok := ftsRank[id]; ok {
			s += cfg.FTSWeight / (k + float64(r))
		}
		scores[id] = s
	}

	out := make([]RankedChunk, 0, len(scores))
	for id, score := range scores {
		out = append(out, RankedChunk{ChunkID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// rankOf converts a score-ordered candidate list (already ranked best-first
// by its retriever) into a 1-based rank-by-chunk-id map.
func rankOf(results []store.ScoredChunk) map[int64]int {
	ranks := make(map[int64]int, len(results))
	for i, r := range results {
		ranks[r.ChunkID] = i + 1
	}
	return ranks
}
