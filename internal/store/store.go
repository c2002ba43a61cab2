// Package store persists document chunks and their embeddings in SQLite,
// using sqlite-vec for nearest-neighbor queries.
package store

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteStore is a chunk store backed by SQLite + sqlite-vec. Chunk rows are
// keyed by their deterministic text id; the vec0 shadow table is keyed by the
// chunk rowid since vec0 requires integer primary keys.
type SQLiteStore struct {
	db   *sql.DB
	path string
	dim  int
}

// Open creates or opens a SQLite database at the given path and initializes
// the schema for the given embedding dimension.
func Open(dbPath string, dim int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db, dim); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath, dim: dim}, nil
}

// Path returns the database file path, used to reopen a fresh connection.
func (s *SQLiteStore) Path() string { return s.path }

// Dim returns the embedding dimension the vec table was created with.
func (s *SQLiteStore) Dim() int { return s.dim }

// UpsertBatch writes a batch of records in one transaction. An existing id
// has its content, metadata, and embedding replaced, so re-indexing an
// unchanged document is idempotent.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, doc_id, chunk_index, total_chunks, hash, content, source, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc_id       = excluded.doc_id,
			chunk_index  = excluded.chunk_index,
			total_chunks = excluded.total_chunks,
			hash         = excluded.hash,
			content      = excluded.content,
			source       = excluded.source,
			type         = excluded.type
	`)
	if err != nil {
		return err
	}
	defer upsert.Close()

	for _, r := range records {
		if _, err := upsert.ExecContext(ctx, r.ID, r.DocID, r.ChunkIndex, r.TotalChunks, r.Hash, r.Content, r.Source, r.Type); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", r.ID, err)
		}

		var rowid int64
		if err := tx.QueryRowContext(ctx, "SELECT rowid FROM chunks WHERE id = ?", r.ID).Scan(&rowid); err != nil {
			return fmt.Errorf("resolve rowid for %s: %w", r.ID, err)
		}

		blob, err := sqlite_vec.SerializeFloat32(r.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding for %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_rowid = ?", rowid); err != nil {
			return fmt.Errorf("replace embedding for %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO vec_chunks (chunk_rowid, embedding) VALUES (?, ?)", rowid, blob); err != nil {
			return fmt.Errorf("insert embedding for %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Query finds the k chunks closest to the query embedding across the whole
// corpus using the vec0 KNN index.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.doc_id, c.chunk_index, c.content, c.source, c.type, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.rowid = v.chunk_rowid
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHits(rows)
}

// QueryDocument finds the k closest chunks within a single document. The
// scan is brute-force over the document's chunks via vec_distance_l2, which
// is exact and cheap at per-document chunk counts.
func (s *SQLiteStore) QueryDocument(ctx context.Context, embedding []float32, docID string, k int) ([]Hit, error) {
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.doc_id, c.chunk_index, c.content, c.source, c.type,
		       vec_distance_l2(v.embedding, ?) AS distance
		FROM chunks c
		JOIN vec_chunks v ON v.chunk_rowid = c.rowid
		WHERE c.doc_id = ?
		ORDER BY distance
		LIMIT ?
	`, blob, docID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHits(rows)
}

func scanHits(rows *sql.Rows) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.DocID, &h.ChunkIndex, &h.Content, &h.Source, &h.Type, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// HasDocument reports whether any chunk for the document exists.
func (s *SQLiteStore) HasDocument(ctx context.Context, docID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM chunks WHERE doc_id = ? LIMIT 1", docID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountChunks returns the number of persisted chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

// Reset removes all chunks and embeddings.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return err
	}
	return tx.Commit()
}

// GetMeta returns a metadata value by key, or "" if not set.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMeta sets a metadata key-value pair.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
