package testutil

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var redisContainer sharedContainer

// GetRedisAddress returns the host:port of a shared redis container.
func GetRedisAddress(t *testing.T) string {
	t.Helper()
	return redisContainer.get(t, func(ctx context.Context) (testcontainers.Container, string, error) {
		redisC, err := testcontainers.Run(
			ctx, "redis:latest",
			testcontainers.WithExposedPorts("6379/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForListeningPort("6379/tcp"),
				wait.ForLog("Ready to accept connections"),
			),
		)
		if err != nil {
			return redisC, "", err
		}

		endpoint, err := redisC.Endpoint(ctx, "")
		if err != nil {
			return redisC, "", err
		}
		return redisC, endpoint, nil
	})
}
