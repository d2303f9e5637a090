package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"coursemarket/internal/middleware"
	"coursemarket/internal/models"
)

// errorBody is the wire shape of every error response
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the service error taxonomy to an HTTP response. Internal
// details never leak: 5xx responses carry a generic message.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := models.HTTPStatus(err)
	message := err.Error()
	if status >= 500 {
		logger.Error("request failed", zap.Error(err))
		message = "internal server error"
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Kind:    models.ErrorKind(err),
		Message: message,
	}})
}

// effectiveSessionKey resolves which cart a request operates on: the
// stable per-user key for authenticated requests, the cookie session key
// for guests.
func effectiveSessionKey(r *http.Request) string {
	if userID := middleware.GetUserID(r.Context()); userID != nil {
		return middleware.UserSessionKey(*userID)
	}
	return middleware.GetSessionKey(r.Context())
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, logger, models.NewValidationError("invalid request body"))
		return false
	}
	return true
}
