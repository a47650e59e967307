package mw_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/teeql/util/log"
	"github.com/wkalt/teeql/util/mw"
)

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	defaultLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	defer slog.SetDefault(defaultLogger)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Infof(r.Context(), "test")
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/", nil)
	require.NoError(t, err)
	recorder := httptest.NewRecorder()
	mw.WithRequestID(handler).ServeHTTP(recorder, req)

	id := recorder.Header().Get(mw.RequestIDHeader)
	require.NotEmpty(t, id)
	require.Contains(t, buf.String(), "request_id="+id)
}

func TestWithCORSAllowedOrigins(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion     string
		method        string
		origin        string
		allowed       string
		code          int
		handlerCalled bool
	}{
		{"allowed origin", http.MethodPost, "http://a.example", "http://a.example", http.StatusOK, true},
		{"other origin", http.MethodPost, "http://b.example", "", http.StatusOK, true},
		{"no origin", http.MethodGet, "", "", http.StatusOK, true},
		{"preflight", http.MethodOptions, "http://a.example", "http://a.example", http.StatusNoContent, false},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})
			req, err := http.NewRequestWithContext(ctx, c.method, "/", nil)
			require.NoError(t, err)
			if c.origin != "" {
				req.Header.Set("Origin", c.origin)
			}
			recorder := httptest.NewRecorder()
			mw.WithCORSAllowedOrigins([]string{"http://a.example"})(handler).ServeHTTP(recorder, req)
			require.Equal(t, c.code, recorder.Code)
			require.Equal(t, c.allowed, recorder.Header().Get("Access-Control-Allow-Origin"))
			require.Equal(t, c.handlerCalled, called)
		})
	}
}
