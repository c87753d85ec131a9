package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/secureentry/secureentry/internal/secureentry/service"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// writeServiceError maps directory and report errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case service.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "worker not found")
	default:
		s.log.Error(r.Context(), op+" failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
