package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/wkalt/teeql/query/types"
)

/*
Writer owns a single destination for the lifetime of one query. It is opened
with truncate semantics, receives at most one header and any number of rows,
and is flushed and released by Close. Close is idempotent so that owners can
defer it on every exit path.

A Writer is not safe for concurrent use; it has exactly one writer.
*/

////////////////////////////////////////////////////////////////////////////////

const defaultBufferSize = 64 * 1024

// Opener creates (or truncates) a destination for writing.
type Opener interface {
	Create(ctx context.Context, path string) (io.WriteCloser, error)
}

// Aborter is implemented by destinations that can discard their content
// instead of committing it, such as streaming object uploads.
type Aborter interface {
	CloseWithError(err error) error
}

// Option configures a Writer.
type Option func(*options)

type options struct {
	delimiter  rune
	bufferSize int
}

// WithDelimiter sets the field delimiter.
func WithDelimiter(d rune) Option {
	return func(o *options) {
		o.delimiter = d
	}
}

// WithBufferSize sets the size of the write buffer in bytes.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// Writer is a delimited-text sink.
type Writer struct {
	path       string
	dst        io.WriteCloser
	buf        *bufio.Writer
	serializer Serializer
	scratch    []byte

	width         int
	headerWritten bool
	rows          int64
	bytes         int64
	closed        bool
}

// Open acquires the destination at path, truncating any existing content.
func Open(ctx context.Context, opener Opener, path string, opts ...Option) (*Writer, error) {
	o := options{
		delimiter:  DefaultDelimiter,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	dst, err := opener.Create(ctx, path)
	if err != nil {
		return nil, FileIOError{Op: "open", Path: path, Err: err}
	}
	return &Writer{
		path:       path,
		dst:        dst,
		buf:        bufio.NewWriterSize(dst, o.bufferSize),
		serializer: NewSerializer(o.delimiter),
		width:      -1,
	}, nil
}

// WriteHeader writes the header line. It may be called at most once, and
// only before any row.
func (w *Writer) WriteHeader(names []string) error {
	if w.closed {
		return FileIOError{Op: "write", Path: w.path, Err: ErrClosed}
	}
	if w.headerWritten {
		return ErrHeaderWritten
	}
	if w.rows > 0 {
		return fmt.Errorf("header must precede rows: %w", ErrHeaderWritten)
	}
	w.scratch = w.serializer.AppendHeader(w.scratch[:0], names)
	if err := w.write(w.scratch); err != nil {
		return err
	}
	w.headerWritten = true
	w.width = len(names)
	return nil
}

// WriteLine appends one pre-serialized, newline-terminated line.
func (w *Writer) WriteLine(line []byte) error {
	if w.closed {
		return FileIOError{Op: "write", Path: w.path, Err: ErrClosed}
	}
	if err := w.write(line); err != nil {
		return err
	}
	w.rows++
	return nil
}

// WriteRow serializes a row and appends it.
func (w *Writer) WriteRow(row []types.Value) error {
	if w.width >= 0 && len(row) != w.width {
		return SerializationError{
			Reason: fmt.Sprintf("row has %d fields but header has %d", len(row), w.width),
		}
	}
	var err error
	w.scratch, err = w.serializer.AppendRow(w.scratch[:0], row)
	if err != nil {
		return err
	}
	return w.WriteLine(w.scratch)
}

func (w *Writer) write(p []byte) error {
	n, err := w.buf.Write(p)
	w.bytes += int64(n)
	if err != nil {
		return FileIOError{Op: "write", Path: w.path, Err: err}
	}
	return nil
}

// Close flushes buffered output and releases the destination. Subsequent
// calls are no-ops.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.buf.Flush()
	closeErr := w.dst.Close()
	if flushErr != nil {
		return FileIOError{Op: "flush", Path: w.path, Err: flushErr}
	}
	if closeErr != nil {
		return FileIOError{Op: "close", Path: w.path, Err: closeErr}
	}
	return nil
}

// Abort releases the destination after a failure. Destinations implementing
// Aborter discard what was written; others are flushed and closed, keeping
// the partial content. Subsequent calls, and calls after Close, are no-ops.
func (w *Writer) Abort(cause error) error {
	if w.closed {
		return nil
	}
	if a, ok := w.dst.(Aborter); ok {
		w.closed = true
		if err := a.CloseWithError(cause); err != nil {
			return FileIOError{Op: "abort", Path: w.path, Err: err}
		}
		return nil
	}
	return w.Close()
}

// Path returns the destination path.
func (w *Writer) Path() string {
	return w.path
}

// Rows returns the number of data rows written.
func (w *Writer) Rows() int64 {
	return w.rows
}

// Bytes returns the number of bytes handed to the buffer, header included.
func (w *Writer) Bytes() int64 {
	return w.bytes
}

// Closed reports whether Close has been called.
func (w *Writer) Closed() bool {
	return w.closed
}
