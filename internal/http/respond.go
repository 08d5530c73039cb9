package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hperssn/coindoro/internal/domain"
	"github.com/hperssn/coindoro/internal/runner"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message, reason string, status int) {
	respondJSON(w, errorBody{Error: message, Reason: reason}, status)
}

// respondRejection maps an engine error onto its HTTP status. Domain
// rejections leave the session unchanged, so the client may simply retry
// with different input.
func respondRejection(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDuration), errors.Is(err, domain.ErrNegativeAmount):
		respondError(w, err.Error(), domain.Reason(err), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidMode):
		respondError(w, err.Error(), domain.Reason(err), http.StatusConflict)
	case errors.Is(err, domain.ErrAccrualDisabled), errors.Is(err, domain.ErrInsufficientBalance):
		respondError(w, err.Error(), domain.Reason(err), http.StatusUnprocessableEntity)
	case errors.Is(err, runner.ErrStopped), errors.Is(err, runner.ErrSessionNotFound):
		respondError(w, "session not found", "not_found", http.StatusNotFound)
	case errors.Is(err, runner.ErrSessionExists):
		respondError(w, err.Error(), "conflict", http.StatusConflict)
	default:
		respondError(w, "internal error", "internal", http.StatusInternalServerError)
	}
}
