package executor

import (
	"context"
	"io"

	"github.com/wkalt/teeql/query/types"
)

/*
MockNode is a mock implementation of a node, used to simulate source nodes in
tests, without a storage dependency.
*/

////////////////////////////////////////////////////////////////////////////////

// MockNode is a mock implementation of a node. It returns its chunks in
// order, then Err if set, then io.EOF.
type MockNode struct {
	chunks []*Chunk
	Err    error
	Pulls  int
	Closes int
}

// Next returns the next chunk from the node.
func (n *MockNode) Next(context.Context) (*Chunk, error) {
	n.Pulls++
	if len(n.chunks) == 0 {
		if n.Err != nil {
			return nil, n.Err
		}
		return nil, io.EOF
	}
	c := n.chunks[0]
	n.chunks = n.chunks[1:]
	return c, nil
}

// String returns a string representation of the node.
func (n *MockNode) String() string {
	return "[mock]"
}

// Close the node.
func (n *MockNode) Close(context.Context) error {
	n.Closes++
	return nil
}

// NewMockNode constructs a new mock node.
func NewMockNode(chunks ...*Chunk) *MockNode {
	return &MockNode{chunks: chunks}
}

// NewIntMockNode constructs a mock node emitting single-column integer rows,
// with one chunk per argument slice.
func NewIntMockNode(chunks ...[]int64) *MockNode {
	result := make([]*Chunk, 0, len(chunks))
	for _, values := range chunks {
		chunk := &Chunk{}
		for _, v := range values {
			chunk.Rows = append(chunk.Rows, []types.Value{types.Int(v)})
		}
		result = append(result, chunk)
	}
	return NewMockNode(result...)
}
