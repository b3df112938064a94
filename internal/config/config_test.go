package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1000, cfg.Scraper.MaxPages)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadParsesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docnerd.yaml")
	content := []byte("data_dir: /srv/docnerd\nembedding:\n  provider: google\n  google_api_key: test-key\nscraper:\n  max_pages: 50\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/docnerd", cfg.DataDir)
	assert.Equal(t, "google", cfg.Embedding.Provider)
	assert.Equal(t, 50, cfg.Scraper.MaxPages)
}

func TestValidateRejectsMissingAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.OpenAIAPIKey = ""
	assert.Error(t, cfg.Validate())

	cfg.Embedding.OpenAIAPIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadChunkingBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.OpenAIAPIKey = "sk-test"
	cfg.Chunking.MaxSize = cfg.Chunking.MinSize - 1
	assert.Error(t, cfg.Validate())
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.OpenAIAPIKey = "sk-test"
	cfg.Scraper.MaxDepth = 7

	path := filepath.Join(t.TempDir(), "docnerd.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Scraper.MaxDepth)
}
