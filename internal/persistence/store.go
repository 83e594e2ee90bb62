package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/petrijr/toolflow/pkg/api"
)

// ErrRunNotFound is returned when a run record is not found.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the history entry written once a run finishes. The engine
// never reads it back.
type RunRecord struct {
	ID           string
	WorkflowID   string
	WorkflowName string
	Status       RunStatus
	Error        string

	// Context is the final context of a completed run, or the partial
	// context of a failed one.
	Context *api.FlowContext

	StartedAt  time.Time
	FinishedAt time.Time
}

// RunFilter selects runs. Zero values mean "no filter" for that field.
type RunFilter struct {
	WorkflowID string
	Status     RunStatus
}

func (f RunFilter) match(r *RunRecord) bool {
	if f.WorkflowID != "" && r.WorkflowID != f.WorkflowID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// RunStore handles storage of run records.
type RunStore interface {
	// SaveRun inserts or replaces the record with rec.ID.
	SaveRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	// ListRuns returns matching runs ordered by start time.
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
}

func sortRuns(runs []*RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.Before(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}
