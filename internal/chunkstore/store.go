// Package chunkstore persists chunk text and metadata in postgres.
// Vectors live in the index adapter; this store is the source of truth
// for chunk identity and ordering.
package chunkstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qaai/apps/backend/internal/corpus"
	"qaai/apps/backend/internal/legal"
)

var (
	// ErrNotFound is a definitive negative; callers must not retry it.
	ErrNotFound = errors.New("chunk not found")
	// ErrStorage marks infrastructure failures that callers may retry.
	ErrStorage = errors.New("chunk store unavailable")
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PutChunks atomically replaces all chunks for a document. Concurrent
// re-ingestion of the same document serializes on a transaction-scoped
// advisory lock keyed by the document id; different documents proceed
// in parallel. On any failure the previous chunk set stays intact.
func (s *Store) PutChunks(ctx context.Context, documentID string, chunks []corpus.Chunk) error {
	for i, c := range chunks {
		if c.ChunkIndex != i {
			return fmt.Errorf("chunk index %d at position %d: indexes must be contiguous from zero", c.ChunkIndex, i)
		}
		if c.DocumentID != documentID {
			return fmt.Errorf("chunk %s belongs to document %s, not %s", c.ID, c.DocumentID, documentID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, documentID); err != nil {
		return fmt.Errorf("%w: lock: %v", ErrStorage, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrStorage, err)
	}

	for _, c := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, chunk_index, content, section_ref, jurisdiction, instrument_type) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.DocumentID, c.ChunkIndex, c.Text, c.SectionRef, string(c.Jurisdiction), string(c.InstrumentType))
		if err != nil {
			return fmt.Errorf("%w: insert chunk %d: %v", ErrStorage, c.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorage, err)
	}
	return nil
}

func (s *Store) GetChunk(ctx context.Context, id string) (*corpus.Chunk, error) {
	c := &corpus.Chunk{}
	var jur, inst string
	query := `SELECT id, document_id, chunk_index, content, section_ref, jurisdiction, instrument_type FROM chunks WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.SectionRef, &jur, &inst)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	c.Jurisdiction = legal.Jurisdiction(jur)
	c.InstrumentType = legal.InstrumentType(inst)
	return c, nil
}

// ListByDocument returns the document's chunks ordered by chunk_index.
// A document with no chunks yields an empty slice, not an error.
func (s *Store) ListByDocument(ctx context.Context, documentID string) ([]corpus.Chunk, error) {
	query := `SELECT id, document_id, chunk_index, content, section_ref, jurisdiction, instrument_type FROM chunks WHERE document_id = $1 ORDER BY chunk_index ASC`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	chunks := []corpus.Chunk{}
	for rows.Next() {
		var c corpus.Chunk
		var jur, inst string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.SectionRef, &jur, &inst); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		c.Jurisdiction = legal.Jurisdiction(jur)
		c.InstrumentType = legal.InstrumentType(inst)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return chunks, nil
}

// DeleteByDocument removes every chunk of a document, also under the
// per-document advisory lock so it cannot interleave with PutChunks.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, documentID); err != nil {
		return fmt.Errorf("%w: lock: %v", ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorage, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chunks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return count, nil
}
