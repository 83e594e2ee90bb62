package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// SQLiteRunStore is a RunStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteRunStore struct {
	db *sql.DB
}

// Ensure SQLiteRunStore implements RunStore.
var _ RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore initializes the required schema in the given
// database and returns a new SQLiteRunStore.
func NewSQLiteRunStore(db *sql.DB) (*SQLiteRunStore, error) {
	s := &SQLiteRunStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteRunStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			workflow_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			context BLOB,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_workflow ON runs(workflow_id, started_at);`,
	)
	return err
}

func (s *SQLiteRunStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	data, err := EncodeContext(rec.Context)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow_id, workflow_name, status, error, context, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			workflow_name = excluded.workflow_name,
			status = excluded.status,
			error = excluded.error,
			context = excluded.context,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
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

const sqliteRunColumns = `id, workflow_id, workflow_name, status, error, context, started_at, finished_at`

func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return rec, err
}

func (s *SQLiteRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs`
	var args []any
	var clauses []string

	if filter.WorkflowID != "" {
		clauses = append(clauses, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
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

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun reads one row in sqliteRunColumns order. Timestamps are stored as
// Unix nanoseconds; the Postgres store shares this layout.
func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec        RunRecord
		status     string
		data       []byte
		started    int64
		finished   int64
		errMessage sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.WorkflowID, &rec.WorkflowName, &status, &errMessage, &data, &started, &finished); err != nil {
		return nil, err
	}
	rec.Status = RunStatus(status)
	rec.Error = errMessage.String
	rec.StartedAt = time.Unix(0, started).UTC()
	rec.FinishedAt = time.Unix(0, finished).UTC()

	fctx, err := DecodeContext(data)
	if err != nil {
		return nil, err
	}
	rec.Context = fctx
	return &rec, nil
}
