package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	for _, backend := range []Backend{"", BackendMemory} {
		p, err := Open(context.Background(), backend, "")
		require.NoError(t, err)
		assert.IsType(t, &InMemoryStore{}, p.Runs)
		assert.IsType(t, &InMemoryStore{}, p.Events)
		assert.NoError(t, p.Close())
	}
}

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	p, err := Open(ctx, BackendSQLite, path)
	require.NoError(t, err)
	require.NoError(t, p.Runs.SaveRun(ctx, sampleRun("run-1", "wf", RunCompleted, 0)))
	require.NoError(t, p.Close())

	reopened, err := Open(ctx, BackendSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Runs.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.Context.Data["sum_result"])
	assert.IsType(t, &SQLiteEventStore{}, reopened.Events)
}

func TestOpen_SQLiteInMemory(t *testing.T) {
	p, err := Open(context.Background(), BackendSQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	testRunStoreContract(t, p.Runs)
	testEventStoreContract(t, p.Events)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "cassandra", "")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpen_BadRedisURL(t *testing.T) {
	_, err := Open(context.Background(), BackendRedis, "not-a-url")
	assert.Error(t, err)
}
