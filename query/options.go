package query

import (
	"io"

	"github.com/wkalt/teeql/history"
	"github.com/wkalt/teeql/query/executor"
)

// Option is a functional option for the engine.
type Option func(*Options)

// Options contains options for the engine.
type Options struct {
	Storage     executor.Storage
	History     history.Store
	ChunkSize   int
	Stats       bool
	StatsOutput io.Writer
}

// WithStorage sets the storage that tee writes to and read_csv reads from.
func WithStorage(storage executor.Storage) Option {
	return func(opts *Options) {
		opts.Storage = storage
	}
}

// WithHistory sets the store that tee invocations are recorded to.
func WithHistory(store history.Store) Option {
	return func(opts *Options) {
		opts.History = store
	}
}

// WithChunkSize sets the maximum number of rows per chunk.
func WithChunkSize(rows int) Option {
	return func(opts *Options) {
		opts.ChunkSize = rows
	}
}

// WithStats enables per-node execution stats, written as JSON to w after
// each statement.
func WithStats(w io.Writer) Option {
	return func(opts *Options) {
		opts.Stats = true
		opts.StatsOutput = w
	}
}
