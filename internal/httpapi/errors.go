package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"keyvisor/internal/service"
	"keyvisor/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case service.IsNotFound(err):
		return http.StatusNotFound
	case service.IsConflict(err):
		return http.StatusConflict
	case service.IsInvalid(err):
		return http.StatusBadRequest
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status and logs server-side
// failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		reqLogger(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSONError(w, status, err.Error())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
