package executor

import (
	"context"
	"fmt"
	"io"
)

/*
LimitNode implements the usual limit operator. Once the limit is reached the
child is no longer pulled.
*/

////////////////////////////////////////////////////////////////////////////////

// LimitNode represents the limit node.
type LimitNode struct {
	limit int64
	child Node
}

// NewLimitNode constructs a new limit node.
func NewLimitNode(limit int64, child Node) *LimitNode {
	return &LimitNode{limit: limit, child: child}
}

// Next returns the next chunk from the node.
func (n *LimitNode) Next(ctx context.Context) (*Chunk, error) {
	if n.limit <= 0 {
		return nil, io.EOF
	}
	chunk, err := n.child.Next(ctx)
	if err != nil {
		return nil, err
	}
	if int64(chunk.Len()) > n.limit {
		chunk = &Chunk{Rows: chunk.Rows[:n.limit]}
	}
	n.limit -= int64(chunk.Len())
	return chunk, nil
}

// Close the node.
func (n *LimitNode) Close(ctx context.Context) error {
	if err := n.child.Close(ctx); err != nil {
		return fmt.Errorf("failed to close limit node: %w", err)
	}
	return nil
}

// String returns a string representation of the node.
func (n *LimitNode) String() string {
	return fmt.Sprintf("[limit %d %s]", n.limit, n.child.String())
}
