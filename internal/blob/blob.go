// Package blob stores uploaded document binaries. Registration records
// keep only descriptors; the bytes live here, keyed by registration
// number and document type.
package blob

import (
	"context"
	"io"
)

// Store writes and reads document binaries.
type Store interface {
	// Put stores the content and returns a stable reference for the
	// document descriptor. A later Put for the same key stores a new
	// object; the caller decides whether to drop the old reference.
	Put(ctx context.Context, registrationNumber, documentType, originalName string, content io.Reader) (ref string, err error)
	// Open returns a reader for a previously stored reference.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Remove deletes a stored object. Removing an unknown reference is
	// not an error.
	Remove(ctx context.Context, ref string) error
}
