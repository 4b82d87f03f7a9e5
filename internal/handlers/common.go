package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"maum-baedal-backend/internal/apperrors"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondServiceError maps a service error to an HTTP response. Typed
// errors surface their message; anything else is logged and masked.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && apperrors.KindOf(err) != apperrors.KindInternal {
		respondError(w, appErr.Msg, apperrors.HTTPStatus(err))
		return
	}
	log.Error().Err(err).Msg(fallback)
	respondError(w, fallback, http.StatusInternalServerError)
}
