// Package storage provides temporary and persistent file storage capabilities.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3 storage.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary and persistent file storage.
// Job inputs and outputs live in temporary files for the duration of a job;
// finished outputs may be published to S3.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name is a hint; its extension is preserved so codecs can infer
	// the container.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// TempPath returns an unused path in the temp directory for a file the
	// caller will create. The extension of name is preserved.
	TempPath(name string) string

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads the file at path under key and returns its URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	Publish(ctx context.Context, key, path string) (url string, err error)
}
