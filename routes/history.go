package routes

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/wkalt/teeql/history"
	"github.com/wkalt/teeql/util/httputil"
)

const defaultHistoryLimit = 100

// newHistoryHandler creates a handler listing recent tee invocations, most
// recent first. The limit query parameter bounds the number of entries.
func newHistoryHandler(store history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			httputil.NotFound(ctx, w, "history is not enabled")
			return
		}
		limit := defaultHistoryLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			var err error
			if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
				httputil.BadRequest(ctx, w, "invalid limit: %s", s)
				return
			}
		}
		entries, err := store.List(ctx, limit)
		if err != nil {
			httputil.InternalServerError(ctx, w, "error listing history: %w", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			httputil.InternalServerError(ctx, w, "error encoding history: %w", err)
		}
	}
}
