package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileFetcherReturnsSuccessWithETag(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.md", "# Hello")

	f := NewFileFetcher()
	source := "file://" + path
	result, err := f.Fetch(context.Background(), source, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "# Hello", string(result.Content))
	assert.NotEmpty(t, result.ETag)
}

func TestFileFetcherReturnsNotModifiedWhenETagMatches(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.md", "# Hello")
	source := "file://" + path

	f := NewFileFetcher()
	first, err := f.Fetch(context.Background(), source, Options{})
	require.NoError(t, err)

	second, err := f.Fetch(context.Background(), source, Options{ETag: first.ETag})
	require.NoError(t, err)
	assert.Equal(t, StatusNotModified, second.Status)
}

func TestFileFetcherReturnsNotFoundForMissingFile(t *testing.T) {
	f := NewFileFetcher()
	result, err := f.Fetch(context.Background(), "file:///does/not/exist.md", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, result.Status)
}

func TestFileFetcherDetectsBinaryContentByNullByte(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "blob.bin", "abc\x00def")

	f := NewFileFetcher()
	result, err := f.Fetch(context.Background(), "file://"+path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", result.MimeType)
}

func TestFileFetcherCanFetchOnlyFileScheme(t *testing.T) {
	f := NewFileFetcher()
	assert.True(t, f.CanFetch("file:///a/b.md"))
	assert.False(t, f.CanFetch("https://example.com"))
}
