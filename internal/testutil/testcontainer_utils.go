// Package testutil starts shared backing services for integration tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

// startTimeout is generous for CI environments.
const startTimeout = 3 * time.Minute

// RequireDocker skips t when running with -short or when no healthy
// container provider is available.
func RequireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// sharedContainer starts one container per test binary and hands every
// caller the same endpoint.
type sharedContainer struct {
	once     sync.Once
	endpoint string
	err      error
}

func (s *sharedContainer) get(t *testing.T, start func(ctx context.Context) (testcontainers.Container, string, error)) string {
	t.Helper()
	RequireDocker(t)

	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()

		c, endpoint, err := start(ctx)
		if err != nil {
			_ = testcontainers.TerminateContainer(c)
			s.err = err
			return
		}
		// Cleanup is tied to the first caller; suites call this once from
		// their top-level test.
		t.Cleanup(func() {
			testcontainers.CleanupContainer(t, c)
		})
		s.endpoint = endpoint
	})

	if s.err != nil {
		t.Fatalf("start container: %v", s.err)
	}
	return s.endpoint
}
