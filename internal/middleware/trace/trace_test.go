package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cashflow/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.1.1.1" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		log.FromContext(r.Context()).InfoContext(r.Context(), "handler ran")
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/accounts", nil))

	if !strings.HasPrefix(seen, "req_") || len(seen) != 36 || !validRequestID(seen) {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("response header = %q, want %q", rec.Header().Get(RequestIDHeader), seen)
	}
	out := buf.String()
	if !strings.Contains(out, "request_id="+seen) || !strings.Contains(out, "status_code=201") {
		t.Fatalf("log output missing fields:\n%s", out)
	}
	if got := m.Stats().Requests; got != 1 {
		t.Fatalf("total = %d", got)
	}
}

func TestIncomingRequestID(t *testing.T) {
	m := NewMiddleware(log.New(log.Config{Output: &bytes.Buffer{}}), nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/mode", nil)
	req.Header.Set(RequestIDHeader, "front-end_42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "front-end_42" {
		t.Fatalf("seen = %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/mode", nil)
	req.Header.Set(RequestIDHeader, "bad id\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("invalid incoming id was kept: %q", seen)
	}
}
