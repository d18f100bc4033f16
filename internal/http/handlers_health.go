package http

import (
	"context"
	"net/http"
	"time"
)

// handleHealth reports liveness along with request counters from the
// middleware chain.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     s.now().Sub(s.started).Round(time.Second).String(),
		"requests":   s.tracer.Stats(),
		"rateLimit":  s.limiter.Stats(),
		"suspicious": s.detector.SuspiciousCount(),
	})
}

// handleReady fails when the activity store is configured but unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"mode": string(s.shell.Mode())}
	status := http.StatusOK

	if s.activity != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.activity.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Activity store not ready", "error", err)
			checks["activity"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			checks["activity"] = "ok"
		}
	}

	writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": checks})
}
