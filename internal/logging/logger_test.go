package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDisabledIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, false, nil, "info", false))

	l := Get(CategoryStore)
	l.Info("should not be written")

	entries, err := filepath.Glob(filepath.Join(dir, "logs", "*.log"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInitializeEnabledWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, nil, "debug", false))
	t.Cleanup(CloseAll)

	l := Get(CategoryFetch)
	l.Info("fetch started")

	entries, err := filepath.Glob(filepath.Join(dir, "logs", "*fetch.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestCategoryFilterDisablesSpecificCategory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, map[string]bool{string(CategoryJob): false}, "debug", false))
	t.Cleanup(CloseAll)

	assert.False(t, IsCategoryEnabled(CategoryJob))
	assert.True(t, IsCategoryEnabled(CategoryStore))
}

func TestTimerStop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true, nil, "debug", false))
	t.Cleanup(CloseAll)

	timer := StartTimer(CategorySplit, "chunk-markdown")
	elapsed := timer.Stop()
	assert.GreaterOrEqual(t, elapsed.Nanoseconds(), int64(0))
}
