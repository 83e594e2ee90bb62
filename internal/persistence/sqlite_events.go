package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/toolflow/pkg/api"
)

// SQLiteEventStore stores run events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements the interfaces.
var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			workflow_id TEXT NOT NULL DEFAULT '',
			step_id TEXT NOT NULL DEFAULT '',
			step_type TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, at, type, workflow_id, step_id, step_type, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID,
		at.UnixNano(),
		string(ev.Type),
		ev.WorkflowID,
		ev.StepID,
		string(ev.StepType),
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, runID string) ([]api.WorkflowEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, at, type, workflow_id, step_id, step_type, detail
		FROM run_events
		WHERE run_id = ?
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.WorkflowEvent
	for rows.Next() {
		var (
			id       string
			atN      int64
			typ      string
			workflow string
			stepID   string
			stepType string
			detail   string
		)
		if err := rows.Scan(&id, &atN, &typ, &workflow, &stepID, &stepType, &detail); err != nil {
			return nil, err
		}
		out = append(out, api.WorkflowEvent{
			RunID:      id,
			At:         time.Unix(0, atN).UTC(),
			Type:       api.EventType(typ),
			WorkflowID: workflow,
			StepID:     stepID,
			StepType:   api.StepType(stepType),
			Detail:     detail,
		})
	}
	return out, rows.Err()
}
