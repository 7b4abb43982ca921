//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mx-space/folio/internal/config"
	"github.com/mx-space/folio/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DefaultMongoImage = "mongo:7"
	mongoPort         = "27017/tcp"
)

var (
	mongoOnce sync.Once
	mongoURI  string
	mongoErr  error
)

// SkipIfNoDocker skips the test if Docker is not available.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// Mongo returns a connection manager bound to a fresh database on a shared
// MongoDB container, with indexes created. The manager is closed when the
// test ends.
func Mongo(t *testing.T) *database.Manager {
	t.Helper()
	SkipIfNoDocker(t)

	mongoOnce.Do(func() {
		mongoURI, mongoErr = startMongo(context.Background())
	})
	if mongoErr != nil {
		t.Fatalf("start mongo container: %v", mongoErr)
	}

	name := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	db := database.NewManager(config.MongoConfig{URI: mongoURI, Database: name, Timeout: 10 * time.Second}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if handle, err := db.Database(ctx); err == nil {
			_ = handle.Drop(ctx)
		}
		_ = db.Close(ctx)
	})
	return db
}

func startMongo(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultMongoImage,
		ExposedPorts: []string{mongoPort},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(mongoPort),
			wait.ForLog("Waiting for connections"),
		).WithStartupTimeout(90 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("create mongo container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return "", fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, mongoPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return "", fmt.Errorf("get mapped port: %w", err)
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port()), nil
}
