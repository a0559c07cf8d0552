// Package objectstore abstracts the blob storage backing job inputs and
// censored outputs behind one interface, with a local-disk implementation
// for single-node/dev deployments and a minio-go implementation for
// production.
package objectstore

import (
	"context"
	"io"
	"time"
)

// Info describes a stored object.
type Info struct {
	Key       string
	SizeBytes int64
	ModTime   time.Time
}

// Store is the capability set every backend implements.
type Store interface {
	// Put uploads the contents of r under key, returning the final size.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	// Get opens key for reading. The caller must close the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Stat returns metadata for key without reading its contents.
	Stat(ctx context.Context, key string) (Info, error)
}
