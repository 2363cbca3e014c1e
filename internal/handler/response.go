// Package handler turns HTTP requests into service calls.
//
// Handlers decode and validate the body, read the caller from the request
// context (see internal/auth), call one service method and encode the result.
// Every error goes through writeError, so the response shape is always
//
//	{"error": "not_found", "message": "trial not found with id abc", "field": "..."}
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/fitting-room/internal/apperror"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "invalid_request"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // offending input field, when known
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a service error to its HTTP status. Errors that are not
// *apperror.AppError become a generic 500 and are logged with their cause.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, kind := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, kind = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, kind = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		status, kind = http.StatusBadGateway, "upstream_failure"
		// The cause stays in the log; clients only see the generic message.
		logger.Warn("upstream failure", slog.String("error", errors.Unwrap(appErr).Error()))
	}

	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}
