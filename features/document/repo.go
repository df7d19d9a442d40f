package document

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM documents WHERE content_hash = $1 AND deleted_at IS NULL)`
	err := r.db.QueryRowContext(ctx, query, hash).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (title, jurisdiction, instrument_type, source_url, project_id, status, content, content_hash)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $7, $8) RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		doc.Title, doc.Jurisdiction, doc.InstrumentType, doc.SourceURL,
		doc.ProjectID, doc.Status, doc.Content, doc.ContentHash,
	).Scan(&doc.ID)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	doc := &Document{}
	query := `SELECT id, title, jurisdiction, instrument_type, source_url, COALESCE(project_id::text, ''), status, chunk_count, content
		FROM documents WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Title, &doc.Jurisdiction, &doc.InstrumentType,
		&doc.SourceURL, &doc.ProjectID, &doc.Status, &doc.ChunkCount, &doc.Content,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PostgresRepo) List(ctx context.Context, projectID string) ([]Document, error) {
	query := `SELECT id, title, jurisdiction, instrument_type, source_url, COALESCE(project_id::text, ''), status, chunk_count
		FROM documents WHERE deleted_at IS NULL AND ($1 = '' OR project_id::text = $1) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Jurisdiction, &d.InstrumentType,
			&d.SourceURL, &d.ProjectID, &d.Status, &d.ChunkCount); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *PostgresRepo) UpdateChunkCount(ctx context.Context, id string, count int) error {
	query := `UPDATE documents SET chunk_count = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, count, id)
	return err
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE documents SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE deleted_at IS NULL`).Scan(&count)
	return count, err
}
