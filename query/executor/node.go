package executor

import (
	"context"

	"github.com/wkalt/teeql/query/types"
)

/*
All operators in the execution plan implement the Node interface. A plan is a
tree of operators, and is executed by repeatedly calling Next() on the root,
until an io.EOF is received.

Operators exchange chunks: batches of up to the configured chunk size rows.
Chunk boundaries carry no meaning; an operator may split, merge or drop rows
across chunks freely as long as row order is preserved. A chunk returned by
Next is owned by the caller until the next call to Next.

The String() method is used to recursively generate a human-readable
representation of the plan. We use it for tests.
*/

////////////////////////////////////////////////////////////////////////////////

// DefaultChunkSize is the number of rows per chunk produced by source nodes.
const DefaultChunkSize = 2048

// Chunk is a batch of rows. Every row has the width of the producing node's
// schema.
type Chunk struct {
	Rows [][]types.Value
}

// NewChunk constructs a new chunk.
func NewChunk(rows ...[]types.Value) *Chunk {
	return &Chunk{Rows: rows}
}

// Len returns the number of rows in the chunk.
func (c *Chunk) Len() int {
	return len(c.Rows)
}

// Node is the interface for all operators in the execution plan.
type Node interface {
	Next(ctx context.Context) (*Chunk, error)
	String() string
	Close(ctx context.Context) error
}
