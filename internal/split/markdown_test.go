package split

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownSplitterEmitsChunkPerHeadingAndBlock(t *testing.T) {
	s := NewMarkdownSplitter()
	content := "# Intro\n\nWelcome text.\n\n## Details\n\nMore text.\n"

	chunks, err := s.Split(content)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var sawH1, sawH2 bool
	for _, c := range chunks {
		if c.Section.Level == 1 && len(c.Section.Path) > 0 && c.Section.Path[0] == "Intro" {
			sawH1 = true
		}
		if c.Section.Level == 2 {
			sawH2 = true
			assert.Equal(t, []string{"Intro", "Details"}, c.Section.Path)
		}
	}
	assert.True(t, sawH1)
	assert.True(t, sawH2)
}

func TestMarkdownSplitterReconstructsOriginalContent(t *testing.T) {
	s := NewMarkdownSplitter()
	content := "preamble text\n\n# Heading\n\nbody paragraph\n\n```go\ncode here\n```\n"

	chunks, err := s.Split(content)
	require.NoError(t, err)

	var reconstructed strings.Builder
	for _, c := range chunks {
		reconstructed.WriteString(c.Content)
	}
	assert.Equal(t, content, reconstructed.String())
}
