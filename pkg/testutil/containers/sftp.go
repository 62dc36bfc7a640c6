//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SFTP account created inside the container. The user is chrooted to its
// home, which holds the regulator's inbox and outbox directories.
const (
	SFTPUser     = "filer"
	SFTPPassword = "filer-secret"
)

// SFTPContainer wraps an OpenSSH SFTP server.
type SFTPContainer struct {
	Container testcontainers.Container
	Host      string
	Port      int
}

// NewSFTPContainer starts an SFTP server with submissions/ and
// acknowledgements/ directories for SFTPUser.
func NewSFTPContainer(t *testing.T) *SFTPContainer {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "atmoz/sftp:alpine",
			ExposedPorts: []string{"22/tcp"},
			Cmd:          []string{SFTPUser + ":" + SFTPPassword + ":::submissions,acknowledgements"},
			WaitingFor:   wait.ForListeningPort("22/tcp"),
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

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	return &SFTPContainer{Container: container, Host: host, Port: port.Int()}
}
