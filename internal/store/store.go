// Package store implements the relational + vector persistence layer:
// libraries, versions, pages and chunks in SQLite, with an FTS5 index and a
// sqlite-vec (or brute-force fallback) vector index over chunk embeddings.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"docnerd/internal/embedding"
	"docnerd/internal/errs"
	"docnerd/internal/logging"

	"github.com/Masterminds/semver/v3"
)

// Store owns all persisted rows and is the sole writer, per the data model's
// ownership rule (spec §3).
type Store struct {
	db     *sql.DB
	engine embedding.Engine
}

// Open opens (creating if necessary) the SQLite database at path, runs
// pending migrations, and initializes the vector index extension when built
// with cgo+sqlite_vec.
func Open(ctx context.Context, path string, engine embedding.Engine) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	// mattn/go-sqlite3 reads the underscore keys; modernc.org/sqlite reads _pragma.
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errs.NewSchemaMigrationError("failed to open database", err)
	}
	db.SetMaxOpenConns(1) // single-writer SQLite; reads multiplex over the same conn pool safely with WAL

	if err := db.PingContext(ctx); err != nil {
		return nil, errs.NewSchemaMigrationError("failed to ping database", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	s := &Store{db: db, engine: engine}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// LIBRARY / VERSION LIFECYCLE
// =============================================================================

// ensureLibrary returns the library id for name, creating it if absent. The
// comparison key is name lowercased (spec §3's case-insensitive-unique
// requirement); the first-seen casing is kept verbatim in display_name.
func (s *Store) ensureLibrary(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	key := strings.ToLower(name)
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM libraries WHERE name = ?`, key).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO libraries (name, display_name) VALUES (?, ?)`, key, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// EnsureVersion returns the version row id for (library, version), creating
// the library and version rows if absent. version == "" is the unversioned
// sentinel entry, per spec §9's resolved open question (see DESIGN.md).
func (s *Store) EnsureVersion(ctx context.Context, library, version, sourceURL string, optionsJSON string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.NewStoreError("begin tx", err, false)
	}
	defer tx.Rollback()

	libID, err := s.ensureLibrary(ctx, tx, library)
	if err != nil {
		return 0, errs.NewStoreError("ensure library", err, false)
	}

	var versionID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM versions WHERE library_id = ? AND version = ?`, libID, version).Scan(&versionID)
	if err == sql.ErrNoRows {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO versions (library_id, version, source_url, status, scraper_options) VALUES (?, ?, ?, ?, ?)`,
			libID, version, sourceURL, StatusQueued, optionsJSON)
		if err != nil {
			return 0, errs.NewStoreError("insert version", err, false)
		}
		versionID, err = res.LastInsertId()
		if err != nil {
			return 0, errs.NewStoreError("read version id", err, false)
		}
	} else if err != nil {
		return 0, errs.NewStoreError("query version", err, false)
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.NewStoreError("commit", err, false)
	}
	return versionID, nil
}

// UpdateVersionStatus sets a version's terminal or in-progress status.
func (s *Store) UpdateVersionStatus(ctx context.Context, versionID int64, status, errorMessage string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE versions SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, nullIfEmpty(errorMessage), versionID)
	if err != nil {
		return errs.NewStoreError("update version status", err, false)
	}
	return nil
}

// UpdateVersionProgress records pages-scraped/total-pages for a running job.
func (s *Store) UpdateVersionProgress(ctx context.Context, versionID int64, pagesScraped, totalPages int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE versions SET pages_scraped = ?, total_pages = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		pagesScraped, totalPages, versionID)
	if err != nil {
		return errs.NewStoreError("update version progress", err, false)
	}
	return nil
}

// StoreScraperOptions persists the ScraperOptions JSON used to launch a
// version's job, so the Manager can re-queue it verbatim on recovery.
func (s *Store) StoreScraperOptions(ctx context.Context, versionID int64, optionsJSON string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE versions SET scraper_options = ? WHERE id = ?`, optionsJSON, versionID)
	if err != nil {
		return errs.NewStoreError("store scraper options", err, false)
	}
	return nil
}

// GetScraperOptions returns the stored ScraperOptions JSON for a version.
func (s *Store) GetScraperOptions(ctx context.Context, versionID int64) (string, error) {
	var opts string
	err := s.db.QueryRowContext(ctx, `SELECT scraper_options FROM versions WHERE id = ?`, versionID).Scan(&opts)
	if err != nil {
		return "", errs.NewStoreError("get scraper options", err, false)
	}
	return opts, nil
}

// LibraryName resolves a library_id to its verbatim display name, used by
// the Manager's recovery-on-start pass to rebuild the (library, version)
// lock key.
func (s *Store) LibraryName(ctx context.Context, libraryID int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT display_name FROM libraries WHERE id = ?`, libraryID).Scan(&name)
	if err != nil {
		return "", errs.NewStoreError("resolve library name", err, false)
	}
	return name, nil
}

// GetVersionsByStatus returns all version rows with the given status, used
// by the Manager's recovery-on-start pass.
func (s *Store) GetVersionsByStatus(ctx context.Context, status string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT v.id, v.library_id, v.version, v.source_url, v.status, COALESCE(v.error_message,''), v.scraper_options,
		        v.pages_scraped, v.total_pages, COALESCE(v.embedding_provider,''), COALESCE(v.embedding_dimensions,0),
		        v.created_at, v.updated_at
		 FROM versions v WHERE v.status = ?`, status)
	if err != nil {
		return nil, errs.NewStoreError("query versions by status", err, false)
	}
	defer rows.Close()
	return scanVersions(rows)
}

// FindVersionsBySourceURL locates versions whose source_url matches, used
// by the Manager to detect duplicate enqueue requests.
func (s *Store) FindVersionsBySourceURL(ctx context.Context, sourceURL string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT v.id, v.library_id, v.version, v.source_url, v.status, COALESCE(v.error_message,''), v.scraper_options,
		        v.pages_scraped, v.total_pages, COALESCE(v.embedding_provider,''), COALESCE(v.embedding_dimensions,0),
		        v.created_at, v.updated_at
		 FROM versions v WHERE v.source_url = ?`, sourceURL)
	if err != nil {
		return nil, errs.NewStoreError("query versions by source url", err, false)
	}
	defer rows.Close()
	return scanVersions(rows)
}

func scanVersions(rows *sql.Rows) ([]Version, error) {
	var out []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.LibraryID, &v.Version, &v.SourceURL, &v.Status, &v.ErrorMessage,
			&v.ScraperOptionsJSON, &v.PagesScraped, &v.TotalPages, &v.EmbeddingProvider, &v.EmbeddingDimensions,
			&v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindBestVersion resolves a library + optional semver range (target) to the
// best concrete matching version, falling back to the unversioned entry.
// library is compared case-insensitively against the stored lowercase key.
func (s *Store) FindBestVersion(ctx context.Context, library, target string) (*Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT v.id, v.library_id, v.version, v.source_url, v.status, COALESCE(v.error_message,''), v.scraper_options,
		        v.pages_scraped, v.total_pages, COALESCE(v.embedding_provider,''), COALESCE(v.embedding_dimensions,0),
		        v.created_at, v.updated_at
		 FROM versions v JOIN libraries l ON l.id = v.library_id WHERE l.name = ?`, strings.ToLower(library))
	if err != nil {
		return nil, errs.NewStoreError("query versions for library", err, false)
	}
	defer rows.Close()
	versions, err := scanVersions(rows)
	if err != nil {
		return nil, errs.NewStoreError("scan versions", err, false)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("library not found: %s", library)
	}

	if target == "" {
		for i := range versions {
			if versions[i].Version == "" {
				return &versions[i], nil
			}
		}
		return &versions[0], nil
	}

	constraint, err := semver.NewConstraint(target)
	if err != nil {
		// Not a valid range; treat as an exact version match.
		for i := range versions {
			if versions[i].Version == target {
				return &versions[i], nil
			}
		}
		return nil, fmt.Errorf("no version matching %s for %s", target, library)
	}

	type candidate struct {
		v   *semver.Version
		idx int
	}
	var candidates []candidate
	unversionedIdx := -1
	for i, ver := range versions {
		if ver.Version == "" {
			unversionedIdx = i
			continue
		}
		sv, err := semver.NewVersion(ver.Version)
		if err != nil {
			continue
		}
		if constraint.Check(sv) {
			candidates = append(candidates, candidate{v: sv, idx: i})
		}
	}
	if len(candidates) == 0 {
		if unversionedIdx >= 0 {
			return &versions[unversionedIdx], nil
		}
		return nil, fmt.Errorf("no version matching %s for %s", target, library)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].v.GreaterThan(candidates[j].v) })
	return &versions[candidates[0].idx], nil
}

// =============================================================================
// PAGE / CHUNK OPERATIONS
// =============================================================================

// ScrapeResult is the outcome of processing one URL, per spec §6.
type ScrapeResult struct {
	URL          string
	Title        string
	ContentType  string
	TextContent  string
	ETag         string
	LastModified string
	Chunks       []Chunk
}

// AddScrapeResult inserts or updates a Page by (version_id, url) and
// atomically replaces its chunks, generating embeddings per batch before
// insert. Delete-then-insert ordering is enforced within a single
// transaction (testable property 5).
func (s *Store) AddScrapeResult(ctx context.Context, versionID int64, depth int, result ScrapeResult) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "AddScrapeResult")
	defer timer.Stop()

	texts := make([]string, len(result.Chunks))
	for i, c := range result.Chunks {
		texts[i] = c.Content
	}
	var vectors [][]float32
	if s.engine != nil && len(texts) > 0 {
		var err error
		vectors, err = s.engine.EmbedBatch(ctx, texts, embedding.ModeDocument)
		if err != nil {
			return 0, errs.NewStoreError("embed chunks", errs.NewEmbeddingError("batch embed failed", err), true)
		}
		if err := s.EnsureVecIndex(ctx, versionID, s.engine.Dimensions()); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.NewStoreError("begin tx", err, false)
	}
	defer tx.Rollback()

	var pageID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM pages WHERE version_id = ? AND url = ?`, versionID, result.URL).Scan(&pageID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO pages (version_id, url, title, etag, last_modified, content_type, depth) VALUES (?,?,?,?,?,?,?)`,
			versionID, result.URL, result.Title, nullIfEmpty(result.ETag), nullIfEmpty(result.LastModified), result.ContentType, depth)
		if err != nil {
			return 0, errs.NewStoreError("insert page", err, false)
		}
		pageID, err = res.LastInsertId()
		if err != nil {
			return 0, errs.NewStoreError("read page id", err, false)
		}
	case err != nil:
		return 0, errs.NewStoreError("query page", err, false)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE pages SET title=?, etag=?, last_modified=?, content_type=?, depth=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`,
			result.Title, nullIfEmpty(result.ETag), nullIfEmpty(result.LastModified), result.ContentType, depth, pageID)
		if err != nil {
			return 0, errs.NewStoreError("update page", err, false)
		}
		// Delete strictly precedes insert of new chunks (property 5).
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE page_id = ?`, pageID); err != nil {
			return 0, errs.NewStoreError("delete old chunks", err, false)
		}
	}

	for i, c := range result.Chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, errs.NewStoreError("marshal chunk metadata", err, false)
		}
		var blob []byte
		if vectors != nil && i < len(vectors) {
			blob = encodeVector(vectors[i])
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (page_id, content, metadata, sort_order, embedding) VALUES (?,?,?,?,?)`,
			pageID, c.Content, string(metaJSON), i, blob); err != nil {
			return 0, errs.NewStoreError("insert chunk", err, false)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.NewStoreError("commit", err, false)
	}
	return pageID, nil
}

// DeletePage hard-deletes a page; chunks cascade via foreign key.
func (s *Store) DeletePage(ctx context.Context, pageID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, pageID)
	if err != nil {
		return errs.NewStoreError("delete page", err, true)
	}
	return nil
}

// RemoveAllDocuments deletes all pages (and cascaded chunks) for a version
// without removing the version row itself.
func (s *Store) RemoveAllDocuments(ctx context.Context, versionID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE version_id = ?`, versionID)
	if err != nil {
		return errs.NewStoreError("remove all documents", err, false)
	}
	return nil
}

// RemoveVersion deletes a version and its pages/chunks, cascading to the
// owning library when it has no versions left.
func (s *Store) RemoveVersion(ctx context.Context, versionID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewStoreError("begin tx", err, false)
	}
	defer tx.Rollback()

	var libID int64
	if err := tx.QueryRowContext(ctx, `SELECT library_id FROM versions WHERE id = ?`, versionID).Scan(&libID); err != nil {
		return errs.NewStoreError("find library for version", err, false)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM versions WHERE id = ?`, versionID); err != nil {
		return errs.NewStoreError("delete version", err, false)
	}
	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions WHERE library_id = ?`, libID).Scan(&remaining); err != nil {
		return errs.NewStoreError("count remaining versions", err, false)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM libraries WHERE id = ?`, libID); err != nil {
			return errs.NewStoreError("delete empty library", err, false)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.NewStoreError("commit", err, false)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeVector serializes a float32 slice as little-endian bytes, per spec §6.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
