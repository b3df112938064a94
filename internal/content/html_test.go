package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLPipelineCanProcess(t *testing.T) {
	p := NewHTMLPipeline()
	assert.True(t, p.CanProcess("text/html; charset=utf-8"))
	assert.True(t, p.CanProcess("application/xhtml+xml"))
	assert.False(t, p.CanProcess("application/json"))
}

func TestHTMLPipelineExtractsTitleLinksAndConvertsToMarkdown(t *testing.T) {
	p := NewHTMLPipeline()
	raw := []byte(`<html><head><title>Docs Home</title></head><body>
<p>Hello <a href="/guide">guide</a> and <a href="https://other.example/x">external</a>.</p>
<script>alert(1)</script>
</body></html>`)

	ctx := &Context{
		Source: "https://docs.example.com/index.html",
		Options: map[string]any{
			"raw":     raw,
			"charset": "",
		},
	}

	err := p.Process(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Docs Home", ctx.Title)
	assert.Equal(t, "text/markdown", ctx.ContentType)
	assert.Contains(t, ctx.Content, "Hello")
	assert.NotContains(t, ctx.Content, "alert(1)")
	assert.Contains(t, ctx.Links, "https://docs.example.com/guide")
	assert.Contains(t, ctx.Links, "https://other.example/x")
}

func TestHTMLPipelineFallsBackToMetaDescriptionWhenNoTitle(t *testing.T) {
	p := NewHTMLPipeline()
	raw := []byte(`<html><head><meta name="description" content="A handy guide"></head><body>content</body></html>`)

	ctx := &Context{
		Source:  "https://docs.example.com/page",
		Options: map[string]any{"raw": raw},
	}

	require.NoError(t, p.Process(ctx))
	assert.Equal(t, "A handy guide", ctx.Title)
}
