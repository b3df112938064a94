package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docnerd.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureVersionCreatesLibraryAndVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.EnsureVersion(ctx, "lib-a", "1.0.0", "file:///docs/index.md", "{}")
	require.NoError(t, err)
	assert.NotZero(t, id)

	again, err := s.EnsureVersion(ctx, "lib-a", "1.0.0", "file:///docs/index.md", "{}")
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestAddScrapeResultReplacesChunksAtomically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	versionID, err := s.EnsureVersion(ctx, "lib-a", "1.0.0", "file:///docs/index.md", "{}")
	require.NoError(t, err)

	result := ScrapeResult{
		URL:         "file:///docs/index.md",
		Title:       "Title",
		ContentType: "text/markdown",
		Chunks: []Chunk{
			{Content: "# Title", Metadata: ChunkMetadata{Level: 1, Path: []string{"Title"}}, SortOrder: 0},
			{Content: "content", Metadata: ChunkMetadata{Level: 0, Path: []string{}}, SortOrder: 1},
		},
	}

	pageID, err := s.AddScrapeResult(ctx, versionID, 0, result)
	require.NoError(t, err)
	require.NotZero(t, pageID)

	chunks, err := s.GetPageChunks(ctx, pageID)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	// Re-adding with fewer chunks must replace, not append.
	result.Chunks = result.Chunks[:1]
	_, err = s.AddScrapeResult(ctx, versionID, 0, result)
	require.NoError(t, err)

	chunks, err = s.GetPageChunks(ctx, pageID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestDeletePageCascadesChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	versionID, err := s.EnsureVersion(ctx, "lib-a", "", "file:///docs/", "{}")
	require.NoError(t, err)

	pageID, err := s.AddScrapeResult(ctx, versionID, 0, ScrapeResult{
		URL:    "file:///docs/a.md",
		Chunks: []Chunk{{Content: "a", SortOrder: 0}},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeletePage(ctx, pageID))

	chunks, err := s.GetPageChunks(ctx, pageID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFindBestVersionResolvesSemverRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.2.0", "2.0.0"} {
		_, err := s.EnsureVersion(ctx, "lib-a", v, "file:///docs/", "{}")
		require.NoError(t, err)
	}

	best, err := s.FindBestVersion(ctx, "lib-a", "1.x")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", best.Version)
}

func TestFindBestVersionFallsBackToUnversioned(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.EnsureVersion(ctx, "lib-b", "", "file:///docs/", "{}")
	require.NoError(t, err)

	best, err := s.FindBestVersion(ctx, "lib-b", "")
	require.NoError(t, err)
	assert.Equal(t, "", best.Version)
}

func TestRemoveVersionCleansUpEmptyLibrary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	versionID, err := s.EnsureVersion(ctx, "lib-c", "1.0.0", "file:///docs/", "{}")
	require.NoError(t, err)

	require.NoError(t, s.RemoveVersion(ctx, versionID))

	_, err = s.FindBestVersion(ctx, "lib-c", "")
	assert.Error(t, err)
}
