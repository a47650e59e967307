package sink

import (
	"errors"
	"fmt"

	"github.com/wkalt/teeql/query/types"
)

/*
Errors returned by the sink package. Every sink failure is fatal to the query
that owns the sink.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrClosed is wrapped by a FileIOError when a closed sink is written to.
var ErrClosed = errors.New("sink is closed")

// ErrHeaderWritten is returned when a header is written to a sink twice.
var ErrHeaderWritten = errors.New("header already written")

// FileIOError is returned when the destination cannot be opened, written,
// flushed, or closed.
type FileIOError struct {
	Op   string
	Path string
	Err  error
}

// Error returns a string representation of the error.
func (e FileIOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e FileIOError) Unwrap() error {
	return e.Err
}

// Is returns true if the target is a FileIOError.
func (e FileIOError) Is(target error) bool {
	_, ok := target.(FileIOError)
	return ok
}

// SerializationError is returned when a value cannot be rendered as a field,
// or a row does not match the width of the header.
type SerializationError struct {
	Column int
	Kind   types.Kind
	Reason string
}

// Error returns a string representation of the error.
func (e SerializationError) Error() string {
	if e.Reason != "" {
		return "serialization error: " + e.Reason
	}
	return fmt.Sprintf("serialization error: cannot render %s in column %d", e.Kind, e.Column)
}

// Is returns true if the target is a SerializationError.
func (e SerializationError) Is(target error) bool {
	_, ok := target.(SerializationError)
	return ok
}
