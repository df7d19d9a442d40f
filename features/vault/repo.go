package vault

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

func (r *PostgresRepo) Save(ctx context.Context, p *Project) error {
	query := `INSERT INTO projects (name, description) VALUES ($1, $2) RETURNING id`
	return r.db.QueryRowContext(ctx, query, p.Name, p.Description).Scan(&p.ID)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Project, error) {
	p := &Project{}
	query := `SELECT p.id, p.name, p.description,
		(SELECT COUNT(*) FROM documents d WHERE d.project_id = p.id AND d.deleted_at IS NULL)
		FROM projects p WHERE p.id = $1 AND p.deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.DocumentCount)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Project, error) {
	query := `SELECT p.id, p.name, p.description,
		(SELECT COUNT(*) FROM documents d WHERE d.project_id = p.id AND d.deleted_at IS NULL)
		FROM projects p WHERE p.deleted_at IS NULL ORDER BY p.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.DocumentCount); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *PostgresRepo) Update(ctx context.Context, p *Project) error {
	query := `UPDATE projects SET name = $1, description = $2, updated_at = NOW() WHERE id = $3 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, p.Name, p.Description, p.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE projects SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE deleted_at IS NULL`).Scan(&count)
	return count, err
}
