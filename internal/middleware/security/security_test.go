package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHeaders(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/overview", nil))
	for name, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestIsSuspicious(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"normal", http.MethodGet, "/api/transactions?q=lunch", "Mozilla/5.0", false},
		{"path traversal", http.MethodGet, "/api/../../etc/passwd", "", true},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"scanner agent", http.MethodGet, "/api/overview", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/api/overview", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := d.IsSuspicious(r); got != tt.want {
				t.Fatalf("IsSuspicious = %v, want %v", got, tt.want)
			}
		})
	}
	if d.SuspiciousCount() != 4 {
		t.Fatalf("count = %d, want 4", d.SuspiciousCount())
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := d.ExtractClientIP(r); got != "203.0.113.9" {
		t.Fatalf("trusted proxy: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:80"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := d.ExtractClientIP(r); got != "198.51.100.7" {
		t.Fatalf("untrusted peer: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "[::1]:8080"
	r.Header.Set("X-Forwarded-For", "not-an-ip")
	r.Header.Set("X-Real-IP", " 2001:db8::7 ")
	if got := d.ExtractClientIP(r); got != "2001:db8::7" {
		t.Fatalf("x-real-ip fallback: got %q", got)
	}

	if err := d.AddTrustedProxy("10.0.0.0/33"); err == nil {
		t.Fatal("invalid CIDR should be rejected")
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector()
	reached := 0
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached++
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil))
	if rec.Code != http.StatusBadRequest || reached != 0 {
		t.Fatalf("probe: code %d, reached %d", rec.Code, reached)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/overview", nil))
	if rec.Code != http.StatusOK || reached != 1 {
		t.Fatalf("normal: code %d, reached %d", rec.Code, reached)
	}
}
