package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wkalt/teeql/history"
	"github.com/wkalt/teeql/query"
	"github.com/wkalt/teeql/util/mw"
)

// MakeRoutes builds the router for the query service. A nil store disables
// the history endpoint.
func MakeRoutes(engine *query.Engine, store history.Store, allowedOrigins []string) *mux.Router {
	r := mux.NewRouter()
	r.Use(mw.WithRequestID)
	if len(allowedOrigins) > 0 {
		r.Use(mw.WithCORSAllowedOrigins(allowedOrigins))
	}
	r.HandleFunc("/query", newQueryHandler(engine)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/history", newHistoryHandler(store)).Methods(http.MethodGet, http.MethodOptions)
	return r
}
