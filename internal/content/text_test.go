package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextPipelineCanProcess(t *testing.T) {
	p := NewTextPipeline()
	assert.True(t, p.CanProcess("text/plain"))
	assert.True(t, p.CanProcess(""))
	assert.False(t, p.CanProcess("application/json"))
}

func TestTextPipelineOnlyDecodesCharset(t *testing.T) {
	p := NewTextPipeline()
	ctx := &Context{Options: map[string]any{"raw": []byte("hello world")}}

	require.NoError(t, p.Process(ctx))
	assert.Equal(t, "hello world", ctx.Content)
}
