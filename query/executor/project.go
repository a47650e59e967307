package executor

import (
	"context"
	"fmt"

	"github.com/wkalt/teeql/query/types"
)

/*
ProjectNode evaluates a select list against every row of its input. A select
list that reproduces its input column-for-column passes chunks through
without copying.
*/

////////////////////////////////////////////////////////////////////////////////

// ProjectNode represents the project node.
type ProjectNode struct {
	child       Node
	expressions []evaluator
	passthrough bool
}

// NewProjectNode constructs a new project node.
func NewProjectNode(expressions []evaluator, passthrough bool, child Node) *ProjectNode {
	return &ProjectNode{child: child, expressions: expressions, passthrough: passthrough}
}

// Next returns the next chunk from the node.
func (n *ProjectNode) Next(ctx context.Context) (*Chunk, error) {
	chunk, err := n.child.Next(ctx)
	if err != nil {
		return nil, err
	}
	if n.passthrough {
		return chunk, nil
	}
	width := len(n.expressions)
	values := make([]types.Value, width*chunk.Len())
	rows := make([][]types.Value, chunk.Len())
	for i, row := range chunk.Rows {
		out := values[i*width : (i+1)*width : (i+1)*width]
		for j, expr := range n.expressions {
			if out[j], err = expr(row); err != nil {
				return nil, err
			}
		}
		rows[i] = out
	}
	return &Chunk{Rows: rows}, nil
}

// Close the node.
func (n *ProjectNode) Close(ctx context.Context) error {
	if err := n.child.Close(ctx); err != nil {
		return fmt.Errorf("failed to close project node: %w", err)
	}
	return nil
}

// String returns a string representation of the node.
func (n *ProjectNode) String() string {
	return fmt.Sprintf("[project %s]", n.child.String())
}
