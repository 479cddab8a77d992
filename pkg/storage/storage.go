// Package storage provides path-addressed blob storage for image payloads
// with local filesystem and S3-compatible backends. Callers are
// backend-agnostic; exactly one backend is active per process.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no blob exists at the path.
var ErrNotFound = errors.New("blob not found")

// Store provides read/write access to binary blobs. Paths follow the
// convention "{galleryID}/{imageID}.{ext}" so a gallery's blobs share a
// common prefix.
type Store interface {
	// Save writes data at path, creating parent prefixes as needed.
	Save(ctx context.Context, path string, data []byte) error

	// Read returns the blob at path, or ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes the blob at path. A missing blob is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether a blob exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// DeletePrefix removes all blobs under the given prefix. Used for
	// bulk cleanup when a gallery is deleted.
	DeletePrefix(ctx context.Context, prefix string) error
}
