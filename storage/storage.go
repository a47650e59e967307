package storage

import (
	"context"
	"errors"
	"io"
)

/*
Storage providers are the places queries read delimited files from and tee
output to. A provider hands out streaming readers and writers; writers created
by Create replace any existing object once closed, and Close reports whether
the content was durably written.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Provider is the interface implemented by storage backends.
type Provider interface {
	// Create opens name for writing, truncating existing content.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// Open opens name for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Glob returns the names matching a doublestar pattern, in lexical order.
	Glob(ctx context.Context, pattern string) ([]string, error)
	// Delete removes name. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error
	String() string
}
