package routes

import (
	"context"
	"errors"
	"net/http"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/wkalt/teeql/output"
	"github.com/wkalt/teeql/query"
	"github.com/wkalt/teeql/util/httputil"
	"github.com/wkalt/teeql/util/log"
)

/*
The query route receives a script of one or more statements, executes it, and
streams the passthrough result of each statement back in the requested format.
Errors detected before the first byte of output is written produce a JSON
error response: 400 for syntax and binding errors, 500 for execution failures.
An error after output has started can only end the response early.
*/

////////////////////////////////////////////////////////////////////////////////

// QueryRequest represents a query request.
type QueryRequest struct {
	Query  string `json:"query"`
	Format string `json:"format"`
}

func (req QueryRequest) validate() error {
	if req.Query == "" {
		return errors.New("missing query")
	}
	return nil
}

var contentTypes = map[output.Format]string{ // nolint:gochecknoglobals
	output.CSV:   "text/csv",
	output.JSON:  "application/x-ndjson",
	output.Table: "text/plain; charset=utf-8",
}

// responseWriter records whether any body bytes have been written.
type responseWriter struct {
	http.ResponseWriter
	contentType string
	wrote       bool
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wrote {
		w.Header().Set("Content-Type", w.contentType)
		w.wrote = true
	}
	return w.ResponseWriter.Write(p)
}

func clientError(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.Canceled)
}

// newQueryHandler creates a new query handler.
func newQueryHandler(engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := QueryRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		log.Infow(ctx, "query request", "query", req.Query, "format", req.Format)
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		format := output.CSV
		if req.Format != "" {
			var err error
			if format, err = output.ParseFormat(req.Format); err != nil {
				httputil.BadRequest(ctx, w, "invalid request: %s", err)
				return
			}
		}
		rw := &responseWriter{ResponseWriter: w, contentType: contentTypes[format]}
		writer, err := output.NewWriter(format, rw)
		if err != nil {
			httputil.InternalServerError(ctx, w, "error creating writer: %s", err)
			return
		}
		err = engine.Exec(ctx, req.Query, writer)
		switch {
		case err == nil:
			if !rw.wrote {
				w.WriteHeader(http.StatusOK)
			}
		case rw.wrote:
			if clientError(err) {
				log.Infof(ctx, "Client closed connection: %s", err)
				return
			}
			log.Errorw(ctx, "query failed after output started", "error", err)
		case query.IsUserError(err):
			httputil.BadRequest(ctx, w, "%w", err)
		default:
			httputil.InternalServerError(ctx, w, "%w", err)
		}
	}
}
