package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownPipelineCanProcess(t *testing.T) {
	p := NewMarkdownPipeline()
	assert.True(t, p.CanProcess("text/markdown"))
	assert.True(t, p.CanProcess("text/x-markdown; charset=utf-8"))
	assert.False(t, p.CanProcess("text/html"))
}

func TestMarkdownPipelineExtractsFrontmatterTitleAndStripsIt(t *testing.T) {
	p := NewMarkdownPipeline()
	raw := []byte("---\ntitle: Getting Started\ntags:\n  - intro\n---\n# Getting Started\n\nSee the [guide](./guide.md) or <https://example.com/ref>.\n")

	ctx := &Context{Options: map[string]any{"raw": raw}}
	require.NoError(t, p.Process(ctx))

	assert.Equal(t, "Getting Started", ctx.Title)
	assert.NotContains(t, ctx.Content, "---")
	assert.Contains(t, ctx.Content, "# Getting Started")
	assert.Contains(t, ctx.Links, "./guide.md")
	assert.Contains(t, ctx.Links, "https://example.com/ref")
}

func TestMarkdownPipelineWithoutFrontmatterLeavesContentUntouched(t *testing.T) {
	p := NewMarkdownPipeline()
	raw := []byte("# No Frontmatter\n\nJust text.\n")

	ctx := &Context{Options: map[string]any{"raw": raw}}
	require.NoError(t, p.Process(ctx))

	assert.Equal(t, "", ctx.Title)
	assert.Equal(t, string(raw), ctx.Content)
}
