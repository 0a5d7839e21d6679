// internal/roundstate/postgres.go
package roundstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"app-deployer/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS repo_records (
	task_id    TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	name       TEXT NOT NULL,
	full_name  TEXT NOT NULL,
	clone_url  TEXT NOT NULL,
	html_url   TEXT NOT NULL,
	pages_url  TEXT NOT NULL,
	brief      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
INSERT INTO repo_records (task_id, owner, name, full_name, clone_url, html_url, pages_url, brief, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (task_id) DO NOTHING`

const selectSQL = `
SELECT task_id, owner, name, full_name, clone_url, html_url, pages_url, brief, created_at
FROM repo_records
WHERE task_id = $1`

// PostgresStore persists round state in the repo_records table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the repo_records table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create repo_records: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, record *models.RepoRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, insertSQL,
		record.Task,
		record.Repo.Owner,
		record.Repo.Name,
		record.Repo.FullName,
		record.Repo.CloneURL,
		record.Repo.HTMLURL,
		record.Repo.PagesURL,
		record.Brief,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert repo record %s: %w", record.Task, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, taskID string) (*models.RepoRecord, error) {
	var record models.RepoRecord
	err := s.db.QueryRowContext(ctx, selectSQL, taskID).Scan(
		&record.Task,
		&record.Repo.Owner,
		&record.Repo.Name,
		&record.Repo.FullName,
		&record.Repo.CloneURL,
		&record.Repo.HTMLURL,
		&record.Repo.PagesURL,
		&record.Brief,
		&record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("select repo record %s: %w", taskID, err)
	}
	return &record, nil
}
