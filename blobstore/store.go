package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction over a backup target: a flat namespace of named,
// immutable blobs. Implementations must be safe for concurrent use.
type Store interface {
	// Put writes a blob under name, replacing any previous content.
	// size is the number of bytes that will be read from r, or -1 if
	// unknown. Put must be atomic: readers never observe partial blobs.
	Put(ctx context.Context, name string, r io.Reader, size int64) error

	// Open opens a blob for reading. Returns ErrNotFound if the blob
	// does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
