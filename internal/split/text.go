package split

import "regexp"

// TextSplitter is the hierarchical fallback: paragraph boundaries, then
// line boundaries, then recursive character splitting. Preserves all
// whitespace so concatenation is exact.
type TextSplitter struct {
	limits Limits
}

func NewTextSplitter(limits Limits) *TextSplitter {
	return &TextSplitter{limits: limits}
}

var paragraphBoundary = regexp.MustCompile(`\n\s*\n`)

func (t *TextSplitter) Split(content string) ([]Chunk, error) {
	pieces := t.splitParagraphs(content)
	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, Chunk{Types: []string{"text"}, Content: p, Section: Section{Level: 0}})
	}
	return chunks, nil
}

func (t *TextSplitter) splitParagraphs(content string) []string {
	if len(content) <= t.limits.MaxSize {
		return []string{content}
	}

	locs := paragraphBoundary.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return t.splitLines(content)
	}

	var out []string
	prev := 0
	for _, loc := range locs {
		piece := content[prev:loc[1]]
		out = append(out, t.fitParagraph(piece)...)
		prev = loc[1]
	}
	if prev < len(content) {
		out = append(out, t.fitParagraph(content[prev:])...)
	}
	return mergeUndersized(out, t.limits)
}

func (t *TextSplitter) fitParagraph(p string) []string {
	if len(p) <= t.limits.MaxSize {
		return []string{p}
	}
	return t.splitLines(p)
}

func (t *TextSplitter) splitLines(content string) []string {
	if len(content) <= t.limits.MaxSize {
		return []string{content}
	}

	var out []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] != '\n' {
			continue
		}
		if i+1-start > t.limits.MaxSize {
			out = append(out, splitByChars(content[start:i+1], t.limits.MaxSize)...)
		} else if i+1-start >= t.limits.PreferredSize {
			out = append(out, content[start:i+1])
		} else {
			continue
		}
		start = i + 1
	}
	if start < len(content) {
		rest := content[start:]
		if len(rest) > t.limits.MaxSize {
			out = append(out, splitByChars(rest, t.limits.MaxSize)...)
		} else {
			out = append(out, rest)
		}
	}
	if len(out) == 0 {
		return splitByChars(content, t.limits.MaxSize)
	}
	return mergeUndersized(out, t.limits)
}

// splitByChars forcibly splits content by rune count, the last-resort path
// for a single unsplittable token exceeding the max chunk size.
func splitByChars(content string, maxSize int) []string {
	runes := []rune(content)
	var out []string
	for i := 0; i < len(runes); i += maxSize {
		end := i + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// mergeUndersized folds pieces below MinSize into their successor so the
// fallback splitter doesn't emit a flurry of tiny trailing chunks.
func mergeUndersized(pieces []string, limits Limits) []string {
	if len(pieces) < 2 {
		return pieces
	}
	out := make([]string, 0, len(pieces))
	pending := ""
	for _, p := range pieces {
		candidate := pending + p
		if len(candidate) < limits.MinSize && len(candidate) <= limits.MaxSize {
			pending = candidate
			continue
		}
		if pending != "" {
			out = append(out, candidate)
			pending = ""
			continue
		}
		out = append(out, p)
	}
	if pending != "" {
		out = append(out, pending)
	}
	return out
}
