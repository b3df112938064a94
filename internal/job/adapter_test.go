package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStoreScrapeResultTranslatesChunkMetadata(t *testing.T) {
	r := ScrapeResult{
		URL:   "https://x.test/a",
		Title: "A",
		Chunks: []ResultChunk{
			{Types: []string{"heading"}, Content: "# A", Level: 1, Path: []string{"A"}},
			{Types: []string{"paragraph"}, Content: "body", Level: 1, Path: []string{"A"}, BoundaryType: "content"},
		},
	}

	out := toStoreScrapeResult(r)

	assert.Equal(t, "https://x.test/a", out.URL)
	assert.Equal(t, "A", out.Title)
	require.Len(t, out.Chunks, 2)
	assert.Equal(t, "# A", out.Chunks[0].Content)
	assert.Equal(t, 1, out.Chunks[0].Metadata.Level)
	assert.Equal(t, []string{"A"}, out.Chunks[0].Metadata.Path)
	assert.Equal(t, 0, out.Chunks[0].SortOrder)
	assert.Equal(t, 1, out.Chunks[1].SortOrder)
	assert.Equal(t, "content", out.Chunks[1].Metadata.BoundaryType)
}
