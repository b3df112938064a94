package split

import (
	"context"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// parserFileLimit is the tree-sitter incremental parser's practical input
// ceiling; beyond it only the head gets a semantic parse (§4.3).
const parserFileLimit = 32 * 1024

// SourceSplitter parses source by language and emits structural chunks
// (class, interface, enum, type alias) and content chunks (function,
// method, constructor, arrow function), each tagged with a boundaryType.
// Only direct children of the file are boundaries, after unwrapping export
// statements and Python decorators: class members are not split out of
// their class, an arrow function bound by a variable declaration is not a
// boundary, and namespaces are not recognised. Grounded on the teacher's TreeSitterParser
// (per-language sitter.Parser, ParseCtx, switch-on-node-type walk,
// ChildByFieldName) generalized from fact extraction to span extraction.
type SourceSplitter struct {
	language string
	limits   Limits
	text     *TextSplitter
}

func NewSourceSplitter(language string, limits Limits) *SourceSplitter {
	return &SourceSplitter{language: language, limits: limits, text: NewTextSplitter(limits)}
}

func (s *SourceSplitter) Split(content string) ([]Chunk, error) {
	lang := sitterLanguage(s.language)
	if lang == nil {
		return s.text.Split(content)
	}

	src := []byte(content)
	head, tail := src, []byte(nil)
	if len(src) > parserFileLimit {
		head, tail = src[:parserFileLimit], src[parserFileLimit:]
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, head)
	if err != nil {
		return s.text.Split(content)
	}
	defer tree.Close()

	chunks := s.assembleBoundaries(tree.RootNode(), head)
	if tail != nil {
		tailChunks, _ := s.text.Split(string(tail))
		chunks = append(chunks, tailChunks...)
	}
	return chunks, nil
}

func sitterLanguage(language string) *sitter.Language {
	switch language {
	case "go":
		return golang.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "tsx":
		return tsx.GetLanguage()
	case "python":
		return python.GetLanguage()
	default:
		return nil
	}
}

var structuralNodeTypes = map[string]bool{
	"type_declaration":       true,
	"class_declaration":      true,
	"class_definition":       true,
	"interface_declaration":  true,
	"enum_declaration":       true,
	"type_alias_declaration": true,
}

var contentNodeTypes = map[string]bool{
	"function_declaration": true,
	"function_definition":  true,
	"method_declaration":   true,
	"method_definition":    true,
	"arrow_function":       true,
	"constructor":          true,
}

// transparentWrapperTypes pass through to their single named declaration
// child without being classified themselves (export statements, Python
// decorators).
var transparentWrapperTypes = map[string]bool{
	"export_statement":     true,
	"decorated_definition": true,
}

func (s *SourceSplitter) assembleBoundaries(root *sitter.Node, src []byte) []Chunk {
	var chunks []Chunk
	pos := 0
	ordinal := 0

	var emitGap = func(end int) {
		if end > pos {
			chunks = append(chunks, Chunk{Types: []string{"code"}, Content: string(src[pos:end]), Section: Section{Level: 0}, BoundaryType: "content"})
			pos = end
		}
	}

	n := int(root.NamedChildCount())
	for i := 0; i < n; i++ {
		child := root.NamedChild(i)
		decl, boundaryType := classify(child)
		if boundaryType == "" {
			continue
		}

		start := int(decl.StartByte())
		end := int(decl.EndByte())
		if int(child.StartByte()) < start {
			start = int(child.StartByte())
		}
		if int(child.EndByte()) > end {
			end = int(child.EndByte())
		}

		if start > pos {
			emitGap(start)
		}

		name := declName(decl, src)
		path := []string{name}
		if end-start <= s.limits.MaxSize {
			chunks = append(chunks, Chunk{
				Types:        []string{"code"},
				Content:      string(src[start:end]),
				Section:      Section{Level: 1, Path: path},
				BoundaryType: boundaryType,
			})
		} else {
			subPieces, _ := s.text.Split(string(src[start:end]))
			for _, p := range subPieces {
				sub := append(append([]string(nil), path...), strconv.Itoa(ordinal))
				chunks = append(chunks, Chunk{Types: []string{"code"}, Content: p, Section: Section{Level: 2, Path: sub}, BoundaryType: boundaryType})
				ordinal++
			}
		}
		pos = end
	}
	emitGap(len(src))
	return chunks
}

// classify resolves transparent wrappers to the underlying declaration and
// returns its boundary classification, or "" if the node isn't a boundary.
func classify(n *sitter.Node) (*sitter.Node, string) {
	t := n.Type()
	for transparentWrapperTypes[t] && n.NamedChildCount() > 0 {
		n = n.NamedChild(0)
		t = n.Type()
	}
	switch {
	case structuralNodeTypes[t]:
		return n, "structural"
	case contentNodeTypes[t]:
		return n, "content"
	default:
		return n, ""
	}
}

func declName(n *sitter.Node, src []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	return n.Type()
}
