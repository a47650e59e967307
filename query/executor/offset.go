package executor

import (
	"context"
	"fmt"
)

/*
OffsetNode implements the usual offset operator.
*/

////////////////////////////////////////////////////////////////////////////////

// OffsetNode represents the offset node.
type OffsetNode struct {
	child  Node
	offset int64
}

// NewOffsetNode constructs a new offset node.
func NewOffsetNode(offset int64, child Node) *OffsetNode {
	return &OffsetNode{offset: offset, child: child}
}

// Next returns the next chunk from the node.
func (n *OffsetNode) Next(ctx context.Context) (*Chunk, error) {
	for {
		chunk, err := n.child.Next(ctx)
		if err != nil {
			return nil, err
		}
		if n.offset == 0 {
			return chunk, nil
		}
		if int64(chunk.Len()) <= n.offset {
			n.offset -= int64(chunk.Len())
			continue
		}
		chunk = &Chunk{Rows: chunk.Rows[n.offset:]}
		n.offset = 0
		return chunk, nil
	}
}

// Close the node.
func (n *OffsetNode) Close(ctx context.Context) error {
	if err := n.child.Close(ctx); err != nil {
		return fmt.Errorf("failed to close offset node: %w", err)
	}
	return nil
}

// String returns a string representation of the node.
func (n *OffsetNode) String() string {
	return fmt.Sprintf("[offset %d %s]", n.offset, n.child.String())
}
