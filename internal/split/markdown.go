package split

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownSplitter walks the document tree with goldmark and emits a chunk
// per heading boundary and per structural block (paragraph, code fence,
// table), per §4.3. level = heading depth; path = ancestry of heading
// titles; unstructured preamble gets {level:0, path:[]}.
type MarkdownSplitter struct {
	md goldmark.Markdown
}

func NewMarkdownSplitter() *MarkdownSplitter {
	return &MarkdownSplitter{md: goldmark.New()}
}

func (s *MarkdownSplitter) Split(content string) ([]Chunk, error) {
	src := []byte(content)
	doc := s.md.Parser().Parse(text.NewReader(src))

	var chunks []Chunk
	var headingStack []string
	pos := 0

	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Heading:
				title := string(headingText(node, src))
				level := node.Level
				if level-1 < len(headingStack) {
					headingStack = headingStack[:level-1]
				}
				headingStack = append(headingStack, title)

				start, end := blockSpan(node, src)
				if end <= start {
					continue
				}
				if start > pos {
					chunks = append(chunks, Chunk{Types: []string{"markdown"}, Content: string(src[pos:start]), Section: Section{Level: 0}})
				}
				chunks = append(chunks, Chunk{
					Types:   []string{"markdown"},
					Content: string(src[start:end]),
					Section: Section{Level: level, Path: append([]string(nil), headingStack...)},
				})
				pos = end

			case *ast.Paragraph, *ast.FencedCodeBlock, *ast.CodeBlock, *ast.List:
				start, end := blockSpan(c, src)
				if end <= start {
					// Container (list) or empty block with no line span of its
					// own: descend so its text is covered by child or gap chunks.
					walk(c)
					continue
				}
				if start > pos {
					chunks = append(chunks, Chunk{Types: []string{"markdown"}, Content: string(src[pos:start]), Section: Section{Level: 0}})
					pos = start
				}
				level := 0
				path := []string(nil)
				if len(headingStack) > 0 {
					level = len(headingStack)
					path = append([]string(nil), headingStack...)
				}
				chunks = append(chunks, Chunk{
					Types:   []string{"markdown"},
					Content: string(src[start:end]),
					Section: Section{Level: level, Path: path},
				})
				pos = end

			default:
				walk(c)
			}
		}
	}
	walk(doc)

	if pos < len(src) {
		chunks = append(chunks, Chunk{Types: []string{"markdown"}, Content: string(src[pos:]), Section: Section{Level: 0}})
	}
	return chunks, nil
}

func headingText(h *ast.Heading, src []byte) []byte {
	var buf bytes.Buffer
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
		}
	}
	return buf.Bytes()
}

func blockSpan(n ast.Node, src []byte) (int, int) {
	lines := n.Lines()
	if lines.Len() == 0 {
		return 0, 0
	}
	first := lines.At(0)
	last := lines.At(lines.Len() - 1)
	return first.Start, last.Stop
}
