package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, run *Run) error {
	query := `INSERT INTO workflow_runs (query, project_id, status) VALUES ($1, NULLIF($2, '')::uuid, $3) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, run.Query, run.ProjectID, run.Status).Scan(&run.ID, &run.CreatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	var output []byte
	query := `SELECT id, query, COALESCE(project_id::text, ''), status, error, output, created_at FROM workflow_runs WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&run.ID, &run.Query, &run.ProjectID, &run.Status, &run.Error, &output, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.Output = json.RawMessage(output)
	return run, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Run, error) {
	query := `SELECT id, query, COALESCE(project_id::text, ''), status, error, created_at FROM workflow_runs ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Query, &run.ProjectID, &run.Status, &run.Error, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *PostgresRepo) UpdateResult(ctx context.Context, id, status, errMsg string, output json.RawMessage) error {
	query := `UPDATE workflow_runs SET status = $1, error = $2, output = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, status, errMsg, []byte(output), id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_runs`).Scan(&count)
	return count, err
}
