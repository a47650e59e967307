package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/wkalt/teeql/history"
	"github.com/wkalt/teeql/query"
	"github.com/wkalt/teeql/query/executor"
	"github.com/wkalt/teeql/routes"
	"github.com/wkalt/teeql/storage"
	"github.com/wkalt/teeql/util/log"
)

/*
This file is the main entrypoint for teeql server startup. The server runs
until its context is canceled, then allows in-flight queries a grace period to
finish before shutting down.
*/

////////////////////////////////////////////////////////////////////////////////

const shutdownGracePeriod = 10 * time.Second

// Service is the teeql HTTP service.
type Service struct {
	addr chan string
}

// NewService creates a new service.
func NewService() *Service {
	return &Service{addr: make(chan string, 1)}
}

// Addr blocks until the server is listening, and returns its address.
func (s *Service) Addr(ctx context.Context) (string, error) {
	select {
	case addr := <-s.addr:
		s.addr <- addr
		return addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Start starts the service and blocks until ctx is canceled or the server
// fails.
func (s *Service) Start(ctx context.Context, options ...Option) error {
	opts := readOpts(options...)
	var store history.Store
	if opts.HistoryPath != "" {
		sqlstore, db, err := history.Open(opts.HistoryPath)
		if err != nil {
			return err
		}
		defer db.Close()
		store = sqlstore
		log.Infof(ctx, "Recording tee history to %s", opts.HistoryPath)
	}
	engine := query.NewEngine(
		query.WithStorage(opts.Storage),
		query.WithHistory(store),
		query.WithChunkSize(opts.ChunkSize),
	)
	log.Infof(ctx, "Building routes with allowed origins %+v", opts.AllowedOrigins)
	srv := &http.Server{
		Handler:           routes.MakeRoutes(engine, store, opts.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.addr <- listener.Addr().String()

	startErr := make(chan error, 1)
	go func() {
		log.Infow(ctx, "Starting server", "addr", listener.Addr().String(), "storage", opts.Storage)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startErr <- err
		}
	}()

	if opts.PprofAddr != "" {
		go servePprof(ctx, opts.PprofAddr)
	}

	select {
	case <-ctx.Done():
		log.Infof(ctx, "Shutting down: %s", context.Cause(ctx))
	case err := <-startErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Infof(ctx, "Allowing %s for existing connections to close", shutdownGracePeriod)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Infof(ctx, "Server stopped")
	return nil
}

func servePprof(ctx context.Context, addr string) {
	r := mux.NewRouter()
	r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	log.Infof(ctx, "Starting pprof server on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf(ctx, "failed to start pprof server: %s", err)
	}
}

func readOpts(opts ...Option) Options {
	options := Options{
		Port:      8089,
		ChunkSize: executor.DefaultChunkSize,
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
		},
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Storage == nil {
		options.Storage = storage.NewDirectoryStore("")
	}
	return options
}
