//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoContainer wraps a generic MongoDB container.
type MongoContainer struct {
	Container testcontainers.Container
	URI       string
	Client    *mongo.Client
}

func NewMongoContainer(t *testing.T) *MongoContainer {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start mongo container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get mongo host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get mongo port: %v", err)
	}
	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping mongo: %v", err)
	}

	return &MongoContainer{Container: container, URI: uri, Client: client}
}

// DropDatabase removes a test database between tests.
func (m *MongoContainer) DropDatabase(ctx context.Context, name string) error {
	return m.Client.Database(name).Drop(ctx)
}
