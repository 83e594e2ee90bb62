package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresRunStore is a RunStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresRunStore struct {
	db *sql.DB
}

// Ensure PostgresRunStore implements RunStore.
var _ RunStore = (*PostgresRunStore)(nil)

// NewPostgresRunStore initializes the required schema in the given
// database and returns a new PostgresRunStore.
func NewPostgresRunStore(db *sql.DB) (*PostgresRunStore, error) {
	s := &PostgresRunStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresRunStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS toolflow_runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			workflow_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			context BYTEA,
			started_at BIGINT NOT NULL,
			finished_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_toolflow_runs_workflow ON toolflow_runs(workflow_id, started_at);
	`)
	return err
}

func (s *PostgresRunStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	data, err := EncodeContext(rec.Context)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO toolflow_runs (id, workflow_id, workflow_name, status, error, context, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET workflow_id   = EXCLUDED.workflow_id,
		    workflow_name = EXCLUDED.workflow_name,
		    status        = EXCLUDED.status,
		    error         = EXCLUDED.error,
		    context       = EXCLUDED.context,
		    started_at    = EXCLUDED.started_at,
		    finished_at   = EXCLUDED.finished_at
	`,
		rec.ID,
		rec.WorkflowID,
		rec.WorkflowName,
		string(rec.Status),
		rec.Error,
		data,
		rec.StartedAt.UnixNano(),
		rec.FinishedAt.UnixNano(),
	)
	return err
}

func (s *PostgresRunStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteRunColumns+`
		FROM toolflow_runs
		WHERE id = $1
	`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return rec, err
}

func (s *PostgresRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	query := `
		SELECT ` + sqliteRunColumns + `
		FROM toolflow_runs`
	var args []any
	var clauses []string

	if filter.WorkflowID != "" {
		clauses = append(clauses, fmt.Sprintf("workflow_id = $%d", len(args)+1))
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}
