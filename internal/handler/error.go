package handler

import (
	"encoding/json"
	"net/http"

	"github.com/spoolworks/atelier/internal/domain"
	"github.com/spoolworks/atelier/internal/middleware"
)

// errorResponse is the JSON error body.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusFromCode maps domain error codes to HTTP status codes.
func statusFromCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ELOCKTIMEOUT:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a domain error as JSON. Internal error details
// are logged, never sent to the client. Lock timeouts advertise a
// retry hint.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := statusFromCode(code)

	if status == http.StatusInternalServerError {
		middleware.GetLogger(r.Context()).Error("request failed", "error", err)
	}
	if code == domain.ELOCKTIMEOUT {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, status, errorResponse{
		Error:     domain.ErrorMessage(err),
		Code:      code,
		Retryable: domain.IsRetryable(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
