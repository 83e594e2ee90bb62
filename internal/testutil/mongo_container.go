package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var mongoContainer sharedContainer

// GetMongoURI returns a mongodb:// URI for a shared mongo:7 container.
func GetMongoURI(t *testing.T) string {
	t.Helper()
	return mongoContainer.get(t, func(ctx context.Context) (testcontainers.Container, string, error) {
		mongoC, err := testcontainers.Run(
			ctx, "mongo:7",
			testcontainers.WithExposedPorts("27017/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForListeningPort("27017/tcp"),
				wait.ForLog("mongod startup complete"),
			),
		)
		if err != nil {
			return mongoC, "", err
		}

		endpoint, err := mongoC.Endpoint(ctx, "")
		if err != nil {
			return mongoC, "", err
		}
		return mongoC, fmt.Sprintf("mongodb://%s", endpoint), nil
	})
}
