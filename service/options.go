package service

import (
	"github.com/wkalt/teeql/query/executor"
)

// Option is a functional option for the service.
type Option func(*Options)

// Options contains options for the service.
type Options struct {
	Port           int
	Storage        executor.Storage
	HistoryPath    string
	ChunkSize      int
	AllowedOrigins []string
	PprofAddr      string
}

// WithPort sets the port to listen on. Zero picks a free port.
func WithPort(port int) Option {
	return func(opts *Options) {
		opts.Port = port
	}
}

// WithStorage sets the storage queries read from and tee into.
func WithStorage(storage executor.Storage) Option {
	return func(opts *Options) {
		opts.Storage = storage
	}
}

// WithHistoryPath sets the path of the sqlite history database. An empty
// path disables history.
func WithHistoryPath(path string) Option {
	return func(opts *Options) {
		opts.HistoryPath = path
	}
}

// WithChunkSize sets the executor chunk size in rows.
func WithChunkSize(rows int) Option {
	return func(opts *Options) {
		opts.ChunkSize = rows
	}
}

// WithAllowedOrigins sets the origins allowed by CORS.
func WithAllowedOrigins(origins []string) Option {
	return func(opts *Options) {
		opts.AllowedOrigins = origins
	}
}

// WithPprofAddr serves pprof handlers on addr. Empty disables pprof.
func WithPprofAddr(addr string) Option {
	return func(opts *Options) {
		opts.PprofAddr = addr
	}
}
