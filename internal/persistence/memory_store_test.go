package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_Runs(t *testing.T) {
	testRunStoreContract(t, NewInMemoryStore())
}

func TestInMemoryStore_Events(t *testing.T) {
	testEventStoreContract(t, NewInMemoryStore())
}

func TestInMemoryStore_IsolatesSavedContext(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	rec := sampleRun("run-1", "wf", RunCompleted, 0)
	require.NoError(t, store.SaveRun(ctx, rec))

	rec.Context.Set("sum_result", -1.0)
	rec.Status = RunFailed

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.Equal(t, 42.0, got.Context.Data["sum_result"])

	// Mutating a returned record does not touch the store either.
	got.Context.Set("sum_result", 0.0)
	again, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, again.Context.Data["sum_result"])
}
