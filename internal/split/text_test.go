package split

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSplitterReturnsWholeContentWhenUnderMaxSize(t *testing.T) {
	s := NewTextSplitter(DefaultLimits())
	chunks, err := s.Split("short content")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short content", chunks[0].Content)
}

func TestTextSplitterReconstructsOriginalContent(t *testing.T) {
	s := NewTextSplitter(Limits{MinSize: 10, PreferredSize: 50, MaxSize: 100})
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("This is a paragraph of text that repeats.\n\n")
	}
	content := b.String()

	chunks, err := s.Split(content)
	require.NoError(t, err)

	var reconstructed strings.Builder
	for _, c := range chunks {
		reconstructed.WriteString(c.Content)
	}
	assert.Equal(t, content, reconstructed.String())
}

func TestTextSplitterForciblySplitsUnsplittableToken(t *testing.T) {
	s := NewTextSplitter(Limits{MinSize: 5, PreferredSize: 10, MaxSize: 20})
	token := strings.Repeat("x", 55)

	chunks, err := s.Split(token)
	require.NoError(t, err)

	var reconstructed strings.Builder
	for _, c := range chunks {
		reconstructed.WriteString(c.Content)
		assert.LessOrEqual(t, len([]rune(c.Content)), 20)
	}
	assert.Equal(t, token, reconstructed.String())
}
