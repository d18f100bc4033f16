package http

import (
	"fmt"
	"net/http"
	"strconv"

	"cashflow/internal/ai"
	"cashflow/internal/core"
	"cashflow/internal/export"
	"cashflow/internal/log"
	"cashflow/internal/storage"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

type analysisResponse struct {
	Advice  string `json:"advice"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	if s.advisor == nil {
		writeJSON(w, http.StatusOK, analysisResponse{Advice: ai.MsgNoAPIKey})
		return
	}
	advice := s.advisor.Analyze(r.Context(), store.Snapshot())
	writeJSON(w, http.StatusOK, analysisResponse{Advice: advice, Enabled: s.advisor.Enabled()})
}

// handleExport streams the CSV report. In production mode a copy is also
// archived; archival failures are logged but do not fail the download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	report, err := export.Build(store.Snapshot(), s.now())
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}

	if s.archiver != nil && store.Mode() == core.ModeProduction {
		uri, err := s.archiver.Archive(r.Context(), store.UID(), report)
		if err != nil {
			log.FromContext(r.Context()).Failure(r.Context(), "Report archival failed", err,
				log.ComponentExport, log.OpExport, log.NewFields().WithSession(store.UID(), string(store.Mode())))
		} else {
			w.Header().Set("X-Archive-URI", uri)
		}
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	w.Header().Set("X-Report-Rows", strconv.Itoa(report.Rows))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Content)
}

// handleClearData needs ?confirm=true and only works in test mode.
func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	if err := store.ClearAllData(r.Context(), confirmed(r)); err != nil {
		s.fail(w, r, log.OpClear, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Local data cleared", "uid", store.UID())
	w.WriteHeader(http.StatusNoContent)
}

// handleListActivity returns the worker's activity log for the current user.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	store, ok := s.ledger(w, r)
	if !ok {
		return
	}
	if s.activity == nil {
		writeError(w, http.StatusNotFound, "activity log is not configured")
		return
	}

	limit := defaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(w, r, log.OpList, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		limit = min(n, maxActivityLimit)
	}

	entries, err := s.activity.ListActivity(r.Context(), limit)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	out := make([]storage.ActivityEntry, 0, len(entries))
	for _, e := range entries {
		if e.UID == store.UID() {
			out = append(out, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": out})
}
