package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wkalt/teeql/util"
)

/*
nodestats wraps a node and records what flowed out of it. The counters are
written to the util exec context when the node is closed, as a child of the
context passed to Close, so the recorded tree mirrors the plan.
*/

////////////////////////////////////////////////////////////////////////////////

type nodestats struct {
	chunksOut int
	rowsOut   int

	startTime           time.Time
	elapsedToFirstChunk time.Duration
	elapsedToLastChunk  time.Duration

	initialized       bool
	firstChunkSeen    bool
	lastChunkRecorded bool

	child Node
	label string
}

// NewNodeStats wraps child in a stats recorder labeled with label.
func NewNodeStats(child Node, label string) Node {
	return &nodestats{
		child: child,
		label: label,
	}
}

func (n *nodestats) Next(ctx context.Context) (*Chunk, error) {
	if !n.initialized {
		n.startTimer()
		n.initialized = true
	}
	chunk, err := n.child.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			n.recordLastChunk()
		}
		return nil, err
	}
	if !n.firstChunkSeen {
		n.recordFirstChunk()
		n.firstChunkSeen = true
	}
	n.chunksOut++
	n.rowsOut += chunk.Len()
	return chunk, nil
}

func (n *nodestats) String() string {
	return n.child.String()
}

func (n *nodestats) Close(ctx context.Context) error {
	if !n.lastChunkRecorded {
		n.recordLastChunk()
	}
	ctx, _ = util.WithChildContext(ctx, n.label)
	util.SetContextValue(ctx, "chunks_out", float64(n.chunksOut))
	util.SetContextValue(ctx, "rows_out", float64(n.rowsOut))
	util.SetContextValue(
		ctx, "elapsed_to_first_chunk_ms", float64(n.elapsedToFirstChunk.Milliseconds()))
	util.SetContextValue(
		ctx, "elapsed_to_last_chunk_ms", float64(n.elapsedToLastChunk.Milliseconds()))
	if tee, ok := n.child.(*TeeNode); ok {
		defer func() {
			util.SetContextValue(ctx, "rows_written", float64(tee.Rows()))
			util.SetContextValue(ctx, "bytes_written", float64(tee.Bytes()))
			util.SetContextData(ctx, "path", tee.Path())
		}()
	}
	if err := n.child.Close(ctx); err != nil {
		return fmt.Errorf("failed to close child: %w", err)
	}
	return nil
}

func (n *nodestats) startTimer() {
	n.startTime = time.Now()
}

func (n *nodestats) recordFirstChunk() {
	n.elapsedToFirstChunk = time.Since(n.startTime)
}

func (n *nodestats) recordLastChunk() {
	if n.startTime.IsZero() {
		n.lastChunkRecorded = true
		return
	}
	n.elapsedToLastChunk = time.Since(n.startTime)
	n.lastChunkRecorded = true
}
