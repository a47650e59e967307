package routes

import (
	"net/http/httptest"
	"testing"

	"github.com/wkalt/teeql/history"
	"github.com/wkalt/teeql/query"
)

// MakeTestRoutes starts a test server over the given engine and store and
// returns its URL and a function that stops it.
func MakeTestRoutes(t *testing.T, engine *query.Engine, store history.Store) (string, func()) {
	t.Helper()
	handler := MakeRoutes(engine, store, []string{"http://localhost:3000"})
	srv := httptest.NewServer(handler)
	return srv.URL, srv.Close
}
