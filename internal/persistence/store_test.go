package persistence

import (
	"context"
	"encoding/gob"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/toolflow/pkg/api"
)

type samplePayload struct {
	Msg string
	N   int
}

func init() {
	gob.Register(samplePayload{})
}

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRun(id, workflowID string, status RunStatus, offset time.Duration) *RunRecord {
	fctx := api.NewFlowContext(map[string]any{"a": 20.0, "b": 22.0})
	fctx.Set("sum_result", 42.0)
	fctx.Visit("sum", api.StepResult{Result: 42.0})
	fctx.Visit("echo", api.StepResult{Result: samplePayload{Msg: "hi", N: 3}})

	rec := &RunRecord{
		ID:           id,
		WorkflowID:   workflowID,
		WorkflowName: "Sample " + workflowID,
		Status:       status,
		Context:      fctx,
		StartedAt:    baseTime.Add(offset),
		FinishedAt:   baseTime.Add(offset + time.Second),
	}
	if status == RunFailed {
		rec.Error = "step \"sum\": boom"
	}
	return rec
}

// testRunStoreContract exercises the RunStore behaviour every backend shares.
// The store must be empty.
func testRunStoreContract(t *testing.T, store RunStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.GetRun(ctx, "missing")
	require.ErrorIs(t, err, ErrRunNotFound)

	runs := []*RunRecord{
		sampleRun("run-b", "wf-1", RunCompleted, 2*time.Minute),
		sampleRun("run-a", "wf-1", RunFailed, time.Minute),
		sampleRun("run-c", "wf-2", RunCompleted, 3*time.Minute),
	}
	for _, r := range runs {
		require.NoError(t, store.SaveRun(ctx, r))
	}

	got, err := store.GetRun(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", got.WorkflowID)
	assert.Equal(t, "Sample wf-1", got.WorkflowName)
	assert.Equal(t, RunCompleted, got.Status)
	assert.Empty(t, got.Error)
	assert.True(t, got.StartedAt.Equal(baseTime.Add(2*time.Minute)))
	assert.True(t, got.FinishedAt.Equal(baseTime.Add(2*time.Minute+time.Second)))

	require.NotNil(t, got.Context)
	assert.Equal(t, 42.0, got.Context.Data["sum_result"])
	assert.Equal(t, "echo", got.Context.LastStepID)
	assert.Equal(t, samplePayload{Msg: "hi", N: 3}, got.Context.LastResult)
	assert.Equal(t, []string{"sum", "echo"}, got.Context.Trace)
	assert.Equal(t, api.StepResult{Result: 42.0}, got.Context.StepResults["sum"])

	failed, err := store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, failed.Status)
	assert.Equal(t, "step \"sum\": boom", failed.Error)

	all, err := store.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b", "run-c"}, runIDs(all))

	byWorkflow, err := store.ListRuns(ctx, RunFilter{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, runIDs(byWorkflow))

	byStatus, err := store.ListRuns(ctx, RunFilter{Status: RunCompleted})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b", "run-c"}, runIDs(byStatus))

	both, err := store.ListRuns(ctx, RunFilter{WorkflowID: "wf-1", Status: RunFailed})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a"}, runIDs(both))

	// Saving again replaces the record.
	retry := sampleRun("run-a", "wf-1", RunCompleted, time.Minute)
	require.NoError(t, store.SaveRun(ctx, retry))

	got, err = store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.Empty(t, got.Error)

	failedRuns, err := store.ListRuns(ctx, RunFilter{Status: RunFailed})
	require.NoError(t, err)
	assert.Empty(t, failedRuns)

	none, err := store.ListRuns(ctx, RunFilter{WorkflowID: "unknown"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// testEventStoreContract checks append order and per-run isolation.
func testEventStoreContract(t *testing.T, store EventStore) {
	t.Helper()
	ctx := context.Background()

	events := []api.WorkflowEvent{
		{RunID: "r1", At: baseTime, Type: api.EventWorkflowStarted, WorkflowID: "wf"},
		{RunID: "r1", At: baseTime.Add(time.Millisecond), Type: api.EventStepStarted, WorkflowID: "wf", StepID: "sum", StepType: api.StepTool},
		{RunID: "r2", At: baseTime, Type: api.EventWorkflowStarted, WorkflowID: "other"},
		{RunID: "r1", At: baseTime.Add(2 * time.Millisecond), Type: api.EventStepFailed, WorkflowID: "wf", StepID: "sum", StepType: api.StepTool, Detail: "boom"},
	}
	for _, ev := range events {
		require.NoError(t, store.AppendEvent(ctx, ev))
	}

	got, err := store.ListEvents(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, api.EventWorkflowStarted, got[0].Type)
	assert.Equal(t, "sum", got[1].StepID)
	assert.Equal(t, api.StepTool, got[1].StepType)
	assert.Equal(t, api.EventStepFailed, got[2].Type)
	assert.Equal(t, "boom", got[2].Detail)
	assert.True(t, got[2].At.Equal(baseTime.Add(2*time.Millisecond)))

	other, err := store.ListEvents(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "other", other[0].WorkflowID)

	empty, err := store.ListEvents(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func runIDs(runs []*RunRecord) []string {
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	return ids
}
