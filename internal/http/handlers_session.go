package http

import (
	"net/http"

	"cashflow/internal/auth"
	"cashflow/internal/core"
	"cashflow/internal/log"
)

type modeResponse struct {
	Mode           core.Mode      `json:"mode"`
	CloudAvailable bool           `json:"cloudAvailable"`
	Backend        string         `json:"backend,omitempty"`
	User           *auth.Identity `json:"user,omitempty"`
}

func (s *Server) modeResponse() modeResponse {
	resp := modeResponse{
		Mode:           s.shell.Mode(),
		CloudAvailable: s.shell.CloudAvailable(),
	}
	if store, err := s.shell.Ledger(); err == nil {
		resp.Backend = store.BackendType().String()
	}
	if id, ok := s.shell.Identity(); ok {
		resp.User = &id
	}
	return resp
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.modeResponse())
}

func (s *Server) handleChooseTestMode(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.ChooseTestMode(r.Context()); err != nil {
		s.fail(w, r, log.OpStartup, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modeResponse())
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpSignIn, err)
		return
	}
	if _, err := s.shell.SignIn(r.Context(), req.Email, req.Password); err != nil {
		s.fail(w, r, log.OpSignIn, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modeResponse())
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpSignUp, err)
		return
	}
	if _, err := s.shell.SignUp(r.Context(), req.Email, req.Password); err != nil {
		s.fail(w, r, log.OpSignUp, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.modeResponse())
}

// handleSignOut also leaves test mode.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.Logout(r.Context()); err != nil {
		s.fail(w, r, log.OpSignOut, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modeResponse())
}
