package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cashflow/internal/app"
	"cashflow/internal/auth"
	"cashflow/internal/core"
	"cashflow/internal/export"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, export.ErrNothingToExport),
		errors.Is(err, ledger.ErrMutationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrClearUnsupported),
		errors.Is(err, ledger.ErrNotRetryable),
		errors.Is(err, app.ErrNoMode),
		errors.Is(err, app.ErrModeActive):
		return http.StatusConflict
	case errors.Is(err, app.ErrCloudUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrAuthFailed),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, auth.ErrMissingFields):
		return http.StatusBadRequest
	case isValidationError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidDirection,
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrEmptyAccountName,
		core.ErrMissingAccount,
		core.ErrMissingCategory,
		core.ErrUnknownAccount,
		core.ErrUnknownCategory,
		core.ErrDirectionMismatch,
		core.ErrNoteTooLong,
		ledger.ErrEmptyDisplayName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail writes err with its mapped status. Server errors are logged and
// their text withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.FromContext(r.Context()).Failure(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
