// Package transport moves files to and from the regulator's transfer host.
package transport

import (
	"context"
	"path"
)

// Operation names used in errors, spans and metrics.
const (
	OpUpload   = "upload"
	OpDownload = "download"
	OpList     = "list"
)

// Client is the transfer host boundary. Implementations hold no
// connection state between calls.
type Client interface {
	// Upload writes data to dir/name. It fails with ErrAlreadyExists when the
	// target is present and never overwrites.
	Upload(ctx context.Context, dir, name string, data []byte) error

	// Download reads dir/name. It fails with ErrNotFound when absent.
	Download(ctx context.Context, dir, name string) ([]byte, error)

	// List returns the file names in dir.
	List(ctx context.Context, dir string) ([]string, error)
}

func joinPath(dir, name string) string {
	return path.Join(dir, name)
}
