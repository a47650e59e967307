package executor

import (
	"context"
	"fmt"
	"io"

	"github.com/wkalt/teeql/query/types"
)

/*
RangeNode emits the integers from start (inclusive) to stop (exclusive) by
step, in chunks of at most chunkSize rows.
*/

////////////////////////////////////////////////////////////////////////////////

// RangeNode represents the range node.
type RangeNode struct {
	next      int64
	stop      int64
	step      int64
	chunkSize int
	done      bool
}

// NewRangeNode constructs a new range node. Step must be nonzero.
func NewRangeNode(start, stop, step int64, chunkSize int) *RangeNode {
	return &RangeNode{next: start, stop: stop, step: step, chunkSize: chunkSize}
}

func (n *RangeNode) more() bool {
	if n.done {
		return false
	}
	if n.step > 0 {
		return n.next < n.stop
	}
	return n.next > n.stop
}

// Next returns the next chunk from the node.
func (n *RangeNode) Next(ctx context.Context) (*Chunk, error) {
	if !n.more() {
		return nil, io.EOF
	}
	rows := make([][]types.Value, 0, n.chunkSize)
	values := make([]types.Value, n.chunkSize)
	for len(rows) < n.chunkSize && n.more() {
		values[len(rows)] = types.Int(n.next)
		rows = append(rows, values[len(rows):len(rows)+1:len(rows)+1])
		next := n.next + n.step
		if (n.step > 0 && next < n.next) || (n.step < 0 && next > n.next) {
			n.done = true
		}
		n.next = next
	}
	return &Chunk{Rows: rows}, nil
}

// Close the node.
func (n *RangeNode) Close(context.Context) error {
	return nil
}

// String returns a string representation of the node.
func (n *RangeNode) String() string {
	return fmt.Sprintf("[range %d %d %d]", n.next, n.stop, n.step)
}
