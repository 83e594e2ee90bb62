package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresContainer sharedContainer

// GetPostgresDSN returns a connection string for a shared postgres:16
// container with a toolflow_test database.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	return postgresContainer.get(t, func(ctx context.Context) (testcontainers.Container, string, error) {
		postgresC, err := testcontainers.Run(
			ctx, "postgres:16",
			testcontainers.WithExposedPorts("5432/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForAll(
					wait.ForListeningPort("5432/tcp"),
					wait.ForLog("ready to accept connections"),
					// Verify SQL connectivity against the mapped host:port.
					wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
						return fmt.Sprintf("postgres://toolflow:toolflow@%s:%s/toolflow_test?sslmode=disable", host, port.Port())
					}).WithQuery("SELECT 1"),
				).WithDeadline(2*time.Minute),
			),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_USER":     "toolflow",
				"POSTGRES_PASSWORD": "toolflow",
				"POSTGRES_DB":       "toolflow_test",
			}),
		)
		if err != nil {
			return postgresC, "", err
		}

		endpoint, err := postgresC.Endpoint(ctx, "")
		if err != nil {
			return postgresC, "", err
		}
		return postgresC, fmt.Sprintf("postgres://toolflow:toolflow@%s/toolflow_test?sslmode=disable", endpoint), nil
	})
}
