package handler

// Response helpers: every handler sends JSON through writeJSON and maps
// domain errors through writeError, so all endpoints share one error shape:
//
//	{"error": "not_found", "message": "session not found with id abc123"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nahin/codetutor/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable error type, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must go out before the body: once Encode writes, the
// headers are sent and can't be changed.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent — logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status code and sends it.
//
// This is the one place domain errors become HTTP. The service and engine
// layers return apperror sentinels; errors.Is walks the wrap chain (our
// AppError implements Unwrap), so a service error like
// fmt.Errorf("creating program: %w", apperror.ValidationFailed(...))
// still maps to 400 here.
//
// The engine-specific mappings:
//   - ErrClosedPipe → 409: the session exists, but its program already
//     exited — sending input now conflicts with the session's state.
//   - ErrUnavailable → 503: the interpreter binary couldn't be spawned at
//     all; the client did nothing wrong and may retry.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrClosedPipe):
			status = http.StatusConflict
			errorType = "session_closed"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable
			errorType = "unavailable"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error — generic 500. Never leak internal detail (SQL, paths)
	// to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
