//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	SFTPUser     = "rca"
	SFTPPassword = "rca-secret"
	// SFTPRoot is writable by SFTPUser inside the chroot.
	SFTPRoot = "/upload"
)

type SFTPContainer struct {
	Container testcontainers.Container
	Addr      string
}

func NewSFTPContainer(t *testing.T) *SFTPContainer {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "atmoz/sftp:alpine",
			ExposedPorts: []string{"22/tcp"},
			Cmd:          []string{fmt.Sprintf("%s:%s:::upload", SFTPUser, SFTPPassword)},
			WaitingFor:   wait.ForListeningPort("22/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start sftp container: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get sftp host: %v", err)
	}
	port, err := container.MappedPort(ctx, "22/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get sftp port: %v", err)
	}
	return &SFTPContainer{Container: container, Addr: fmt.Sprintf("%s:%s", host, port.Port())}
}
