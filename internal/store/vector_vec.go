//go:build sqlite_vec && cgo

package store

import (
	"context"
	"strconv"

	"docnerd/internal/errs"
)

// vectorSearchImpl queries the per-version vec0 virtual table directly,
// grounded on the teacher's embedded_store.go vec_distance_cosine pattern.
// The vec0 table is created lazily on first embed (see EnsureVecIndex) since
// it needs the provider's dimension.
func (s *Store) vectorSearchImpl(ctx context.Context, versionID int64, queryEmbedding []float32, topK int) ([]ScoredChunk, error) {
	tableName, ok, err := s.vecTableName(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// No embeddings stored for this version yet.
		return nil, nil
	}

	queryBlob := encodeVector(queryEmbedding)
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, distance FROM `+tableName+`
		 WHERE embedding MATCH ? AND k = ?
		 ORDER BY distance ASC`, queryBlob, topK)
	if err != nil {
		return nil, errs.NewStoreError("vec0 search query", err, false)
	}
	defer rows.Close()

	var out []ScoredChunk
	for rows.Next() {
		var chunkID int64
		var distance float64
		if err := rows.Scan(&chunkID, &distance); err != nil {
			return nil, errs.NewStoreError("scan vec0 row", err, false)
		}
		out = append(out, ScoredChunk{ChunkID: chunkID, Score: 1.0 - distance})
	}
	return out, rows.Err()
}

// vecTableName returns the vec0 virtual table name for a version, and
// whether it has been created yet.
func (s *Store) vecTableName(ctx context.Context, versionID int64) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT table_name FROM vec_index_meta WHERE version_id = ?`, versionID).Scan(&name)
	if err != nil {
		return "", false, nil
	}
	return name, true, nil
}

// EnsureVecIndex creates the vec0 virtual table for a version the first time
// an embedding of a given dimension is stored against it.
func (s *Store) EnsureVecIndex(ctx context.Context, versionID int64, dimensions int) error {
	if _, ok, _ := s.vecTableName(ctx, versionID); ok {
		return nil
	}
	tableName := vecTableNameFor(versionID)
	stmt := `CREATE VIRTUAL TABLE ` + tableName + ` USING vec0(chunk_id INTEGER PRIMARY KEY, embedding FLOAT[` + strconv.Itoa(dimensions) + `])`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errs.NewStoreError("create vec0 table", err, false)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vec_index_meta (version_id, dimensions, table_name) VALUES (?, ?, ?)`,
		versionID, dimensions, tableName)
	if err != nil {
		return errs.NewStoreError("record vec index meta", err, false)
	}
	return nil
}

func vecTableNameFor(versionID int64) string {
	return "vec_chunks_" + strconv.FormatInt(versionID, 10)
}
