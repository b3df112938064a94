package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONPipelineCanProcess(t *testing.T) {
	p := NewJSONPipeline()
	assert.True(t, p.CanProcess("application/json"))
	assert.True(t, p.CanProcess("application/vnd.api+json"))
	assert.False(t, p.CanProcess("text/plain"))
}

func TestJSONPipelineExtractsTitleAndDescriptionFromKnownFields(t *testing.T) {
	p := NewJSONPipeline()
	raw := []byte(`{"name": "widget-service", "description": "Handles widget orders", "version": "1.2.0"}`)

	ctx := &Context{Options: map[string]any{"raw": raw}}
	require.NoError(t, p.Process(ctx))

	assert.Equal(t, "widget-service", ctx.Title)
	assert.Equal(t, "Handles widget orders", ctx.Options["description"])
	assert.Empty(t, ctx.Errors)
}

func TestJSONPipelinePrefersTitleOverOtherNameFields(t *testing.T) {
	p := NewJSONPipeline()
	raw := []byte(`{"title": "Explicit Title", "name": "fallback-name"}`)

	ctx := &Context{Options: map[string]any{"raw": raw}}
	require.NoError(t, p.Process(ctx))

	assert.Equal(t, "Explicit Title", ctx.Title)
}

func TestJSONPipelineFlagsInvalidJSONWithoutFailingTheChain(t *testing.T) {
	p := NewJSONPipeline()
	raw := []byte(`{not valid json`)

	ctx := &Context{Options: map[string]any{"raw": raw}}
	err := p.Process(ctx)

	require.NoError(t, err)
	require.Len(t, ctx.Errors, 1)
	assert.Equal(t, string(raw), ctx.Content)
}
