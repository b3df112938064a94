package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"docnerd/internal/embedding"
	"docnerd/internal/errs"
	"docnerd/internal/logging"
)

// ScoredChunk is a chunk id with a retrieval rank/score, returned by both the
// vector and FTS candidate searches for fusion in internal/retrieval.
type ScoredChunk struct {
	ChunkID int64
	Score   float64
}

// VectorSearch returns the topK chunks (scoped to versionID) most similar to
// queryEmbedding by cosine distance. Grounded on the teacher's
// vec_distance_cosine query pattern; falls back to a brute-force scan when
// built without cgo+sqlite_vec (see vector_fallback.go).
func (s *Store) VectorSearch(ctx context.Context, versionID int64, queryEmbedding []float32, topK int) ([]ScoredChunk, error) {
	timer := logging.StartTimer(logging.CategoryStore, "VectorSearch")
	defer timer.Stop()

	return s.vectorSearchImpl(ctx, versionID, queryEmbedding, topK)
}

// bruteForceVectorSearch scans every non-null embedding for a version and
// ranks by cosine similarity. Shared by the pure-Go fallback build and usable
// as a correctness oracle in tests regardless of build tags.
func bruteForceVectorSearch(ctx context.Context, db *sql.DB, versionID int64, queryEmbedding []float32, topK int) ([]ScoredChunk, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.id, c.embedding FROM chunks c
		 JOIN pages p ON p.id = c.page_id
		 WHERE p.version_id = ? AND c.embedding IS NOT NULL`, versionID)
	if err != nil {
		return nil, errs.NewStoreError("vector scan query", err, false)
	}
	defer rows.Close()

	var corpusIDs []int64
	var corpusVecs [][]float32
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, errs.NewStoreError("scan vector row", err, false)
		}
		corpusIDs = append(corpusIDs, id)
		corpusVecs = append(corpusVecs, decodeVector(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStoreError("iterate vector rows", err, false)
	}

	results, err := embedding.FindTopK(queryEmbedding, corpusVecs, topK)
	if err != nil {
		return nil, errs.NewStoreError("rank vectors", err, false)
	}

	out := make([]ScoredChunk, len(results))
	for i, r := range results {
		out[i] = ScoredChunk{ChunkID: corpusIDs[r.Index], Score: r.Similarity}
	}
	return out, nil
}

// FTSSearch returns the topK chunks (scoped to versionID) best matching query
// by the FTS5 bm25 ranking. The match expression unions an exact-phrase form
// with a keyword-AND form, so a query that doesn't appear verbatim can still
// match on its constituent terms (§4.6 step 3).
func (s *Store) FTSSearch(ctx context.Context, versionID int64, query string, topK int) ([]ScoredChunk, error) {
	timer := logging.StartTimer(logging.CategoryStore, "FTSSearch")
	defer timer.Stop()

	matchExpr := buildFTSMatchExpr(query)
	if matchExpr == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, bm25(chunks_fts) AS rank
		 FROM chunks_fts
		 JOIN chunks c ON c.id = chunks_fts.rowid
		 JOIN pages p ON p.id = c.page_id
		 WHERE chunks_fts MATCH ? AND p.version_id = ?
		 ORDER BY rank LIMIT ?`, matchExpr, versionID, topK)
	if err != nil {
		return nil, errs.NewStoreError("fts search query", err, false)
	}
	defer rows.Close()

	var out []ScoredChunk
	for rows.Next() {
		var id int64
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, errs.NewStoreError("scan fts row", err, false)
		}
		// bm25 is "lower is better"; invert so ScoredChunk.Score is "higher is better"
		// consistently with VectorSearch's cosine similarity.
		out = append(out, ScoredChunk{ChunkID: id, Score: -rank})
	}
	return out, rows.Err()
}

// buildFTSMatchExpr turns a free-text query into an FTS5 match expression
// that ORs an exact-phrase match with a keyword-AND match, so phrase hits
// rank alongside looser term matches in the same candidate pool.
func buildFTSMatchExpr(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = strings.ReplaceAll(f, `"`, `""`)
	}

	phrase := `"` + strings.Join(escaped, " ") + `"`
	if len(fields) == 1 {
		return phrase
	}

	quoted := make([]string, len(escaped))
	for i, f := range escaped {
		quoted[i] = `"` + f + `"`
	}
	keywordAnd := strings.Join(quoted, " AND ")
	return "(" + phrase + ") OR (" + keywordAnd + ")"
}

// GetChunkContent returns the text content and metadata JSON for a chunk id,
// used by the retriever's context assembly stage.
func (s *Store) GetChunkContent(ctx context.Context, chunkID int64) (content string, metadataJSON string, pageID int64, sortOrder int, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT content, metadata, page_id, sort_order FROM chunks WHERE id = ?`, chunkID).
		Scan(&content, &metadataJSON, &pageID, &sortOrder)
	if err != nil {
		err = errs.NewStoreError("get chunk content", err, false)
	}
	return
}

// GetPage returns a page's metadata, used by the retriever to decide which
// assembly strategy applies (by ContentType) and to label assembled regions.
func (s *Store) GetPage(ctx context.Context, pageID int64) (Page, error) {
	var p Page
	err := s.db.QueryRowContext(ctx,
		`SELECT id, version_id, url, title, etag, last_modified, content_type, depth FROM pages WHERE id = ?`, pageID).
		Scan(&p.ID, &p.VersionID, &p.URL, &p.Title, &p.ETag, &p.LastModified, &p.ContentType, &p.Depth)
	if err != nil {
		return Page{}, errs.NewStoreError("get page", err, false)
	}
	return p, nil
}

// ListPages returns every page belonging to a version, used to seed a
// refresh job's crawl frontier with already-known URLs and ETags.
func (s *Store) ListPages(ctx context.Context, versionID int64) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version_id, url, title, etag, last_modified, content_type, depth FROM pages WHERE version_id = ?`, versionID)
	if err != nil {
		return nil, errs.NewStoreError("list pages", err, false)
	}
	defer rows.Close()

	var out []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.VersionID, &p.URL, &p.Title, &p.ETag, &p.LastModified, &p.ContentType, &p.Depth); err != nil {
			return nil, errs.NewStoreError("scan page", err, false)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPageChunks returns every chunk belonging to a page, in sort_order, used
// to assemble broad-context windows around a matched chunk.
func (s *Store) GetPageChunks(ctx context.Context, pageID int64) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, page_id, content, metadata, sort_order FROM chunks WHERE page_id = ? ORDER BY sort_order`, pageID)
	if err != nil {
		return nil, errs.NewStoreError("get page chunks", err, false)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var metaJSON string
		if err := rows.Scan(&c.ID, &c.PageID, &c.Content, &metaJSON, &c.SortOrder); err != nil {
			return nil, errs.NewStoreError("scan page chunk", err, false)
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return nil, errs.NewStoreError("decode chunk metadata", err, false)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
