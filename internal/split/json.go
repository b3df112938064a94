package split

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// JSONSplitter emits one minimal chunk per structural token and primitive
// property, preserving indentation and commas so concatenation yields valid
// JSON (§4.3). Grounded on gjson's Index/Raw fields, which track each
// value's exact byte span in the original document, letting chunks be cut
// by slicing the source rather than re-serializing it.
type JSONSplitter struct {
	maxDepth  int
	maxChunks int
	text      *TextSplitter
}

func NewJSONSplitter(limits Limits) *JSONSplitter {
	return &JSONSplitter{maxDepth: 5, maxChunks: 1000, text: NewTextSplitter(limits)}
}

func (s *JSONSplitter) Split(content string) ([]Chunk, error) {
	root := gjson.Parse(content)
	if !root.Exists() || (!root.IsObject() && !root.IsArray()) {
		return s.text.Split(content)
	}

	count := countNodes(root, 0, s.maxDepth)
	if count > s.maxChunks {
		return s.text.Split(content)
	}

	w := &jsonWalker{content: content, splitter: s}
	w.walkValue(root, []string{"root"}, 0)
	if w.pos < len(content) {
		w.emit(w.pos, len(content), []string{"root"}, 0)
	}
	return w.chunks, nil
}

func countNodes(v gjson.Result, depth, maxDepth int) int {
	if depth >= maxDepth || (!v.IsObject() && !v.IsArray()) {
		return 1
	}
	n := 1
	v.ForEach(func(_, child gjson.Result) bool {
		n += countNodes(child, depth+1, maxDepth)
		return true
	})
	return n
}

type jsonWalker struct {
	content  string
	splitter *JSONSplitter
	chunks   []Chunk
	pos      int
}

// emit flushes content[w.pos:end] as one chunk (start only clamps to
// w.pos), so whatever lies between the previous chunk and start (keys,
// colons, commas, whitespace) rides along with the chunk being emitted,
// i.e. the one that follows it.
func (w *jsonWalker) emit(start, end int, path []string, level int) {
	if start < w.pos {
		start = w.pos
	}
	if end <= w.pos {
		return
	}
	piece := w.content[w.pos:end]
	w.pos = end
	w.chunks = append(w.chunks, Chunk{
		Types:   []string{"json"},
		Content: piece,
		Section: Section{Level: level, Path: append([]string(nil), path...)},
	})
}

func (w *jsonWalker) walkValue(v gjson.Result, path []string, level int) {
	if level >= w.splitter.maxDepth {
		w.emit(int(v.Index), v.Index+len(v.Raw), path, level)
		return
	}

	switch {
	case v.IsObject():
		w.walkContainer(v, path, level, true)
	case v.IsArray():
		w.walkContainer(v, path, level, false)
	default:
		w.emitOversizedAware(v, path, level)
	}
}

func (w *jsonWalker) walkContainer(v gjson.Result, path []string, level int, isObject bool) {
	// opening brace/bracket, as its own structural chunk
	if v.Index > w.pos {
		w.emit(int(v.Index), v.Index+1, path, level)
	} else {
		w.emit(w.pos, w.pos+1, path, level)
	}

	i := 0
	v.ForEach(func(key, child gjson.Result) bool {
		childPath := path
		if isObject {
			childPath = append(append([]string(nil), path...), key.String())
		} else {
			childPath = append(append([]string(nil), path...), fmt.Sprintf("[%d]", i))
		}
		w.walkValue(child, childPath, level+1)
		i++
		return true
	})

	closeIdx := v.Index + len(v.Raw) - 1
	if closeIdx >= w.pos {
		w.emit(closeIdx, closeIdx+1, path, level)
	}
}

// emitOversizedAware delegates a single oversized primitive to the text
// splitter, emitting the property path prefix once and the value split
// across successor chunks, per §4.3.
func (w *jsonWalker) emitOversizedAware(v gjson.Result, path []string, level int) {
	start, end := int(v.Index), v.Index+len(v.Raw)
	if end-start <= w.splitter.text.limits.MaxSize {
		w.emit(start, end, path, level)
		return
	}

	if start > w.pos {
		w.emit(w.pos, start, path, level)
	}
	pieces, _ := w.splitter.text.Split(v.Raw)
	for i, p := range pieces {
		sub := append(append([]string(nil), path...), strconv.Itoa(i))
		w.chunks = append(w.chunks, Chunk{Types: []string{"json"}, Content: p, Section: Section{Level: level + 1, Path: sub}})
	}
	w.pos = end
}
