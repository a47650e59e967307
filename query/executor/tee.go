package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wkalt/teeql/query/types"
	"github.com/wkalt/teeql/sink"
	"github.com/wkalt/teeql/util/log"
)

/*
TeeNode copies every row that flows through it to a delimited file, and passes
each chunk through to its parent unmodified.

The node moves through the states uninitialized, open, streaming and one of
finished or aborted. On the first pull it opens the sink and writes the header.
Each subsequent pull reads one chunk from the child, writes all of its rows to
the sink, and only then returns the chunk. When the child is exhausted the sink
is closed before io.EOF is returned, so a successful query implies a durable
file. Any failure from the child, the sink, or the context closes the sink and
is returned; the node then keeps returning that error.

If the parent stops pulling early, Close pulls the rest of the child into the
sink, so the file holds the complete input however the parent consumed it. A
cancel cause on the context skips the drain and aborts instead.
*/

////////////////////////////////////////////////////////////////////////////////

type teeState int

const (
	teeUninitialized teeState = iota
	teeOpen
	teeStreaming
	teeFinished
	teeAborted
)

func (s teeState) String() string {
	switch s {
	case teeUninitialized:
		return "uninitialized"
	case teeOpen:
		return "open"
	case teeStreaming:
		return "streaming"
	case teeFinished:
		return "finished"
	case teeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// TeeReport describes the outcome of one tee node. Err is nil if the sink was
// closed cleanly.
type TeeReport struct {
	Path     string
	Rows     int64
	Bytes    int64
	Started  time.Time
	Finished time.Time
	Err      error
}

// TeeOption configures a TeeNode.
type TeeOption func(*TeeNode)

// WithTeeDelimiter sets the field delimiter of the output file.
func WithTeeDelimiter(d rune) TeeOption {
	return func(n *TeeNode) {
		n.delimiter = d
	}
}

// WithTeeHeader controls whether a header line is written.
func WithTeeHeader(header bool) TeeOption {
	return func(n *TeeNode) {
		n.header = header
	}
}

// WithTeeObserver registers a function called once when the node reaches a
// terminal state.
func WithTeeObserver(f func(context.Context, TeeReport)) TeeOption {
	return func(n *TeeNode) {
		n.observer = f
	}
}

// TeeNode represents the tee node.
type TeeNode struct {
	child  Node
	opener sink.Opener
	path   string
	schema types.Schema

	delimiter rune
	header    bool
	observer  func(context.Context, TeeReport)

	state   teeState
	w       *sink.Writer
	err     error
	started time.Time
	closed  bool
}

// NewTeeNode constructs a new tee node. The schema is the schema of the
// child, and supplies the header.
func NewTeeNode(child Node, opener sink.Opener, path string, schema types.Schema, opts ...TeeOption) *TeeNode {
	n := &TeeNode{
		child:     child,
		opener:    opener,
		path:      path,
		schema:    schema,
		delimiter: sink.DefaultDelimiter,
		header:    true,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Next returns the next chunk from the node.
func (n *TeeNode) Next(ctx context.Context) (*Chunk, error) {
	switch n.state {
	case teeFinished:
		return nil, io.EOF
	case teeAborted:
		return nil, n.err
	case teeUninitialized:
		if err := n.open(ctx); err != nil {
			return nil, n.abort(ctx, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, n.abort(ctx, fmt.Errorf("tee %s canceled: %w", n.path, context.Cause(ctx)))
	}
	chunk, err := n.child.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if err := n.finish(ctx); err != nil {
				return nil, n.abort(ctx, err)
			}
			return nil, io.EOF
		}
		return nil, n.abort(ctx, fmt.Errorf("failed to read next chunk: %w", err))
	}
	n.state = teeStreaming
	for _, row := range chunk.Rows {
		if err := n.w.WriteRow(row); err != nil {
			return nil, n.abort(ctx, fmt.Errorf("failed to write %s: %w", n.path, err))
		}
	}
	return chunk, nil
}

func (n *TeeNode) open(ctx context.Context) error {
	if _, err := types.Derive(n.schema); err != nil {
		return err
	}
	n.started = time.Now()
	w, err := sink.Open(ctx, n.opener, n.path, sink.WithDelimiter(n.delimiter))
	if err != nil {
		return err
	}
	n.w = w
	n.state = teeOpen
	if n.header {
		if err := n.w.WriteHeader(n.schema.Names()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	log.Debugw(ctx, "opened tee sink", "path", n.path, "columns", len(n.schema))
	return nil
}

func (n *TeeNode) finish(ctx context.Context) error {
	if err := n.w.Close(); err != nil {
		return err
	}
	n.state = teeFinished
	log.Debugw(ctx, "closed tee sink", "path", n.path, "rows", n.w.Rows())
	n.report(ctx, nil)
	return nil
}

// abort releases the sink, records err as terminal, and returns it. The sink
// error is dropped in favor of the original failure.
func (n *TeeNode) abort(ctx context.Context, err error) error {
	if n.w != nil {
		_ = n.w.Abort(err)
	}
	n.state = teeAborted
	n.err = err
	log.Debugw(ctx, "aborted tee", "path", n.path, "error", err)
	n.report(ctx, err)
	return err
}

func (n *TeeNode) report(ctx context.Context, err error) {
	if n.observer == nil {
		return
	}
	report := TeeReport{
		Path:     n.path,
		Started:  n.started,
		Finished: time.Now(),
		Err:      err,
	}
	if n.w != nil {
		report.Rows = n.w.Rows()
		report.Bytes = n.w.Bytes()
	}
	n.observer(ctx, report)
}

// Close the node. If the parent stopped pulling before the end of the
// stream, the remaining input is written to the sink before it is closed; a
// canceled context marks the tee aborted.
func (n *TeeNode) Close(ctx context.Context) error {
	if n.closed {
		return nil
	}
	n.closed = true
	var sinkErr error
	switch n.state {
	case teeUninitialized, teeOpen, teeStreaming:
		cause := context.Cause(ctx)
		switch {
		case cause != nil && n.state == teeUninitialized:
			n.state = teeAborted
		case cause != nil:
			_ = n.abort(ctx, fmt.Errorf("tee %s interrupted: %w", n.path, cause))
		default:
			sinkErr = n.drain(ctx)
		}
	}
	if err := n.child.Close(ctx); err != nil {
		return errors.Join(sinkErr, fmt.Errorf("failed to close tee node: %w", err))
	}
	return sinkErr
}

// drain pulls the child to exhaustion, discarding the passthrough chunks.
func (n *TeeNode) drain(ctx context.Context) error {
	for {
		if _, err := n.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// String returns a string representation of the node.
func (n *TeeNode) String() string {
	return fmt.Sprintf("[tee %s %s]", n.path, n.child.String())
}

// Rows returns the number of rows written to the sink.
func (n *TeeNode) Rows() int64 {
	if n.w == nil {
		return 0
	}
	return n.w.Rows()
}

// Bytes returns the number of bytes written to the sink, including the header.
func (n *TeeNode) Bytes() int64 {
	if n.w == nil {
		return 0
	}
	return n.w.Bytes()
}

// Path returns the sink path.
func (n *TeeNode) Path() string {
	return n.path
}
