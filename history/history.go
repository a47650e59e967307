package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

/*
The history package keeps a log of tee invocations. Every tee node that
finishes or aborts produces one Entry, recorded against the id of the query it
ran in. The log is advisory: a failure to record is logged by the caller and
never fails the query.
*/

////////////////////////////////////////////////////////////////////////////////

// Status is the terminal state of a tee invocation.
type Status string

const (
	// StatusFinished means every row was written and the sink was closed.
	StatusFinished Status = "finished"
	// StatusAborted means the invocation failed or was canceled.
	StatusAborted Status = "aborted"
)

// Entry describes one tee invocation.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	QueryID    uuid.UUID `json:"queryId"`
	Path       string    `json:"path"`
	Rows       int64     `json:"rows"`
	Bytes      int64     `json:"bytes"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Store records and lists entries.
type Store interface {
	// Record stores an entry.
	Record(ctx context.Context, entry Entry) error
	// List returns up to limit entries, most recent first.
	List(ctx context.Context, limit int) ([]Entry, error)
}
