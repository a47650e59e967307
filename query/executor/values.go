package executor

import (
	"context"
	"fmt"
	"io"

	"github.com/wkalt/teeql/query/types"
)

// ValuesNode emits a fixed set of rows. A SELECT without FROM reads from a
// values node holding a single zero-width row.
type ValuesNode struct {
	rows      [][]types.Value
	chunkSize int
}

// NewValuesNode constructs a new values node.
func NewValuesNode(rows [][]types.Value, chunkSize int) *ValuesNode {
	return &ValuesNode{rows: rows, chunkSize: chunkSize}
}

// Next returns the next chunk from the node.
func (n *ValuesNode) Next(context.Context) (*Chunk, error) {
	if len(n.rows) == 0 {
		return nil, io.EOF
	}
	count := min(n.chunkSize, len(n.rows))
	chunk := &Chunk{Rows: n.rows[:count]}
	n.rows = n.rows[count:]
	return chunk, nil
}

// Close the node.
func (n *ValuesNode) Close(context.Context) error {
	return nil
}

// String returns a string representation of the node.
func (n *ValuesNode) String() string {
	return fmt.Sprintf("[values %d]", len(n.rows))
}
