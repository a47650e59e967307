package executor

import (
	"context"
	"fmt"
)

/*
FilterNode implements a filter operator, which drops rows for which the
predicate is false or NULL. Chunks that filter to nothing are not returned.
*/

////////////////////////////////////////////////////////////////////////////////

// FilterNode represents the filter node.
type FilterNode struct {
	child     Node
	predicate evaluator
}

// NewFilterNode constructs a new filter node.
func NewFilterNode(predicate evaluator, child Node) *FilterNode {
	return &FilterNode{child: child, predicate: predicate}
}

// Next returns the next chunk from the node.
func (n *FilterNode) Next(ctx context.Context) (*Chunk, error) {
	for {
		chunk, err := n.child.Next(ctx)
		if err != nil {
			return nil, err
		}
		result := &Chunk{}
		for _, row := range chunk.Rows {
			v, err := n.predicate(row)
			if err != nil {
				return nil, fmt.Errorf("failed to filter row: %w", err)
			}
			if !v.IsNull() && v.AsBool() {
				result.Rows = append(result.Rows, row)
			}
		}
		if result.Len() > 0 {
			return result, nil
		}
	}
}

// Close the node.
func (n *FilterNode) Close(ctx context.Context) error {
	if err := n.child.Close(ctx); err != nil {
		return fmt.Errorf("failed to close filter node: %w", err)
	}
	return nil
}

// String returns a string representation of the node.
func (n *FilterNode) String() string {
	return fmt.Sprintf("[filter %s]", n.child.String())
}
