package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docnerd/internal/config"
	"docnerd/internal/embedding"
	"docnerd/internal/store"
)

type fakeCandidateStore struct {
	vec []store.ScoredChunk
	fts []store.ScoredChunk
}

func (f *fakeCandidateStore) VectorSearch(ctx context.Context, versionID int64, q []float32, topK int) ([]store.ScoredChunk, error) {
	return f.vec, nil
}

func (f *fakeCandidateStore) FTSSearch(ctx context.Context, versionID int64, query string, topK int) ([]store.ScoredChunk, error) {
	return f.fts, nil
}

type fakeEngine struct{}

func (fakeEngine) Embed(ctx context.Context, text string, mode embedding.Mode) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}
func (fakeEngine) EmbedBatch(ctx context.Context, texts []string, mode embedding.Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	return out, nil
}
func (fakeEngine) Dimensions() int { return 2 }
func (fakeEngine) Name() string    { return "fake" }

func TestHybridSearchFusesVectorAndFTSCandidates(t *testing.T) {
	s := &fakeCandidateStore{
		vec: []store.ScoredChunk{{ChunkID: 1}, {ChunkID: 2}},
		fts: []store.ScoredChunk{{ChunkID: 2}, {ChunkID: 1}},
	}

	out, err := HybridSearch(context.Background(), s, fakeEngine{}, defaultRetrievalConfig(), 1, "query text", 5)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func defaultRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{VectorWeight: 1.0, FTSWeight: 1.0, RRFK: 60, VectorMultiplier: 10, FTSOverfetch: 2}
}

// S6 from §8: chunk X rank 1 vector / rank 3 fts, chunk Y rank 3 vector /
// rank 1 fts, all others absent. Equal weights, k_rrf=60: scores tie, order
// falls back to ascending chunk id, limit=1 returns the lower id.
func TestFuseRRFTieBreaksByChunkID(t *testing.T) {
	vec := []store.ScoredChunk{{ChunkID: 10}, {ChunkID: 99}, {ChunkID: 20}}
	fts := []store.ScoredChunk{{ChunkID: 20}, {ChunkID: 99}, {ChunkID: 10}}

	out := fuse(vec, fts, defaultRetrievalConfig(), 1)
	require.Len(t, out, 1)
	assert.Equal(t, int64(10), out[0].ChunkID)
}

func TestFuseRanksAbsentCandidateAsZeroContribution(t *testing.T) {
	vec := []store.ScoredChunk{{ChunkID: 1}}
	fts := []store.ScoredChunk{}

	out := fuse(vec, fts, defaultRetrievalConfig(), 5)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].ChunkID)
	assert.InDelta(t, 1.0/61.0, out[0].Score, 1e-9)
}

func TestFuseOrdersTiedScoresByAscendingChunkID(t *testing.T) {
	vec := []store.ScoredChunk{{ChunkID: 1}, {ChunkID: 2}}
	fts := []store.ScoredChunk{{ChunkID: 2}, {ChunkID: 1}}

	out := fuse(vec, fts, defaultRetrievalConfig(), 2)
	require.Len(t, out, 2)
	// Both appear at rank 1 and rank 2 across the two lists, so scores tie;
	// expect ascending chunk id as the deterministic tiebreak.
	assert.Equal(t, int64(1), out[0].ChunkID)
	assert.Equal(t, int64(2), out[1].ChunkID)
}

func TestFuseRespectsLimit(t *testing.T) {
	vec := []store.ScoredChunk{{ChunkID: 1}, {ChunkID: 2}, {ChunkID: 3}}
	fts := []store.ScoredChunk{}

	out := fuse(vec, fts, defaultRetrievalConfig(), 2)
	assert.Len(t, out, 2)
}
