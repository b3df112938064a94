package retrieval

import (
	"context"
	"sort"
	"strings"

	"docnerd/internal/store"
)

// assemblyStore is the subset of *store.Store the assembler needs to expand
// a match into its surrounding context.
type assemblyStore interface {
	GetPage(ctx context.Context, pageID int64) (store.Page, error)
	GetPageChunks(ctx context.Context, pageID int64) ([]store.Chunk, error)
	GetChunkContent(ctx context.Context, chunkID int64) (content string, metadataJSON string, pageID int64, sortOrder int, err error)
}

// hierarchicalMIMEs selects the hierarchical assembly strategy; everything
// else (Markdown, HTML, plain text) falls back to the broad-context
// strategy, per §4.6.1.
var hierarchicalMIMEs = map[string]bool{
	"application/json":   true,
	"application/x-yaml": true,
	"text/yaml":          true,
	"text/x-source":      true,
	"application/x-toml": true,
}

const (
	broadSiblingsBefore = 2
	broadSiblingsAfter  = 2
	broadMaxChildren    = 5
)

// AssembledRegion is one reassembled context window returned to the caller,
// grouped by page with the maximum match score of its constituent chunks.
type AssembledRegion struct {
	PageID      int64
	URL         string
	Title       string
	ContentType string
	Content     string
	Score       float64
}

// Assemble expands each ranked chunk into its surrounding context using the
// strategy selected by its page's content type, then dedups by chunk id
// within a page and collapses to one region per page (§4.6.1).
func Assemble(ctx context.Context, s assemblyStore, ranked []RankedChunk) ([]AssembledRegion, error) {
	byPage := map[int64][]int64{}
	scoreOf := map[int64]float64{}

	for _, r := range ranked {
		_, _, pageID, _, err := s.GetChunkContent(ctx, r.ChunkID)
		if err != nil {
			return nil, err
		}
		byPage[pageID] = append(byPage[pageID], r.ChunkID)
		if r.Score > scoreOf[pageID] {
			scoreOf[pageID] = r.Score
		}
	}

	var regions []AssembledRegion
	for pageID, chunkIDs := range byPage {
		page, err := s.GetPage(ctx, pageID)
		if err != nil {
			return nil, err
		}
		all, err := s.GetPageChunks(ctx, pageID)
		if err != nil {
			return nil, err
		}

		var content string
		if hierarchicalMIMEs[page.ContentType] {
			content = assembleHierarchical(all, chunkIDs)
		} else {
			content = assembleBroad(all, chunkIDs)
		}

		regions = append(regions, AssembledRegion{
			PageID:      pageID,
			URL:         page.URL,
			Title:       page.Title,
			ContentType: page.ContentType,
			Content:     content,
			Score:       scoreOf[pageID],
		})
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Score != regions[j].Score {
			return regions[i].Score > regions[j].Score
		}
		return regions[i].PageID < regions[j].PageID
	})
	return regions, nil
}

func assembleBroad(all []store.Chunk, matchIDs []int64) string {
	indexByID := map[int64]int{}
	for i, c := range all {
		indexByID[c.ID] = i
	}

	included := map[int]bool{}
	for _, id := range matchIDs {
		idx, ok := indexByID[id]
		if !ok {
			continue
		}
		included[idx] = true

		parentIdx := findParentIndex(all, idx)
		if parentIdx >= 0 {
			included[parentIdx] = true
		}

		for i := idx - 1; i >= 0 && i >= idx-broadSiblingsBefore; i-- {
			included[i] = true
		}
		for i := idx + 1; i < len(all) && i <= idx+broadSiblingsAfter; i++ {
			included[i] = true
		}

		children := childIndices(all, idx)
		for n, ci := range children {
			if n >= broadMaxChildren {
				break
			}
			included[ci] = true
		}
	}

	order := make([]int, 0, len(included))
	for i := range included {
		order = append(order, i)
	}
	sort.Ints(order)

	parts := make([]string, len(order))
	for i, idx := range order {
		parts[i] = all[idx].Content
	}
	return strings.Join(parts, "\n\n")
}

// findParentIndex walks backward from idx to the nearest preceding chunk at
// a shallower hierarchy level.
func findParentIndex(all []store.Chunk, idx int) int {
	level := all[idx].Metadata.Level
	for i := idx - 1; i >= 0; i-- {
		if all[i].Metadata.Level < level {
			return i
		}
	}
	return -1
}

// childIndices returns indices of chunks immediately following idx whose
// level is deeper, stopping at the first chunk back at idx's level or
// shallower.
func childIndices(all []store.Chunk, idx int) []int {
	level := all[idx].Metadata.Level
	var out []int
	for i := idx + 1; i < len(all); i++ {
		if all[i].Metadata.Level <= level {
			break
		}
		out = append(out, i)
	}
	return out
}

// assembleHierarchical walks each match up to its structural root (level 0,
// or the shallowest ancestor found) and concatenates every descendant of
// that root in document order. Multiple matches under the same root collapse
// to one assembled region.
func assembleHierarchical(all []store.Chunk, matchIDs []int64) string {
	indexByID := map[int64]int{}
	for i, c := range all {
		indexByID[c.ID] = i
	}

	roots := map[int]bool{}
	for _, id := range matchIDs {
		idx, ok := indexByID[id]
		if !ok {
			continue
		}
		roots[structuralRoot(all, idx)] = true
	}

	included := map[int]bool{}
	for root := range roots {
		included[root] = true
		for _, ci := range childIndices(all, root) {
			included[ci] = true
		}
	}

	order := make([]int, 0, len(included))
	for i := range included {
		order = append(order, i)
	}
	sort.Ints(order)

	var b strings.Builder
	for _, idx := range order {
		b.WriteString(all[idx].Content)
	}
	return b.String()
}

// structuralRoot walks backward from idx to the shallowest ancestor
// (smallest level) reachable without crossing a gap back to level 0.
func structuralRoot(all []store.Chunk, idx int) int {
	root := idx
	level := all[idx].Metadata.Level
	for i := idx - 1; i >= 0; i-- {
		if all[i].Metadata.Level < level {
			root = i
			level = all[i].Metadata.Level
			if level == 0 {
				break
			}
		}
	}
	return root
}
