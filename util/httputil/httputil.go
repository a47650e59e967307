package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/teeql/util/log"
)

/*
httputil contains utility functions for HTTP error responses. Any error
generated in a handler should go through one of these, to ensure we are logging
and responding to the client in a consistent way.
*/

////////////////////////////////////////////////////////////////////////////////

// Detailer is an interface for errors that can provide a detailed message.
type Detailer interface {
	Detail() string
}

func detail(err error) string {
	for ; err != nil; err = errors.Unwrap(err) {
		if d, ok := err.(Detailer); ok {
			return d.Detail()
		}
	}
	return ""
}

// ErrorResponse is the structure of an error response. The Detail field is
// optional and will be omitted from the JSON serialization if unsupplied.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := ErrorResponse{Error: err.Error()}
	if details := detail(err); details != "" {
		resp.Detail = details
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorw(ctx, "error writing response", "error", err)
	}
}

// NotFound logs the error and sends a 404 response to the client.
func NotFound(ctx context.Context, w http.ResponseWriter, msg string, args ...any) {
	err := fmt.Errorf(msg, args...)
	log.Debugw(ctx, "Not found", "msg", err)
	writeErrorResponse(ctx, w, http.StatusNotFound, err)
}

// BadRequest logs the error and sends a 400 response to the client.
func BadRequest(ctx context.Context, w http.ResponseWriter, msg string, args ...any) {
	err := fmt.Errorf(msg, args...)
	log.Infow(ctx, "Bad request", "msg", err)
	writeErrorResponse(ctx, w, http.StatusBadRequest, err)
}

// InternalServerError logs the error and sends a 500 response to the client.
// Query failures are the client's business, so the message is passed on.
func InternalServerError(ctx context.Context, w http.ResponseWriter, msg string, args ...any) {
	err := fmt.Errorf(msg, args...)
	log.Errorw(ctx, "Internal server error", "msg", err)
	writeErrorResponse(ctx, w, http.StatusInternalServerError, err)
}
