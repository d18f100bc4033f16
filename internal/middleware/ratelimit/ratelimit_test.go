package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowWindow(t *testing.T) {
	rl := NewLimiter(Config{Requests: 2, Window: time.Minute})
	defer rl.Stop()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.1.1.1") || !rl.Allow("1.1.1.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("other clients are independent")
	}
	if got := rl.RetryAfter("1.1.1.1"); got != time.Minute {
		t.Fatalf("RetryAfter = %v", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("window should have reset")
	}
	if m := rl.Stats(); m.Limited != 1 || m.Clients != 2 {
		t.Fatalf("metrics = %+v", m)
	}

	now = now.Add(3 * time.Minute)
	rl.cleanupStaleEntries()
	if m := rl.Stats(); m.Clients != 0 {
		t.Fatalf("stale clients kept: %+v", m)
	}
}

func TestMiddlewareOnlyLimitsWrites(t *testing.T) {
	rl := NewLimiter(Config{Requests: 1, Window: time.Minute})
	defer rl.Stop()

	h := rl.Middleware(func(*http.Request) string { return "9.9.9.9" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/overview", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("GET %d throttled: %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first POST = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
}
