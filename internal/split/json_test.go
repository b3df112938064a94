package split

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSplitterReconstructsOriginalDocument(t *testing.T) {
	s := NewJSONSplitter(DefaultLimits())
	content := `{"a":1,"b":{"c":2,"d":[1,2,3]},"e":"text"}`

	chunks, err := s.Split(content)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var reconstructed strings.Builder
	for _, c := range chunks {
		reconstructed.WriteString(c.Content)
	}
	assert.Equal(t, content, reconstructed.String())
}

func TestJSONSplitterPathsDescendFromRoot(t *testing.T) {
	s := NewJSONSplitter(DefaultLimits())
	content := `{"name":"widget"}`

	chunks, err := s.Split(content)
	require.NoError(t, err)

	var sawNamePath bool
	for _, c := range chunks {
		if len(c.Section.Path) >= 2 && c.Section.Path[0] == "root" && c.Section.Path[1] == "name" {
			sawNamePath = true
		}
	}
	assert.True(t, sawNamePath)
}

func TestJSONSplitterFallsBackToTextForNonObjectInput(t *testing.T) {
	s := NewJSONSplitter(DefaultLimits())
	chunks, err := s.Split("not json at all")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"text"}, chunks[0].Types)
}
