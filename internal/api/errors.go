package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"convify/internal/services"
)

// Error keys returned in ErrorResponse.Key.
const (
	KeyValidation   = "validation_error"
	KeyRateLimited  = "rate_limited"
	KeyUnauthorized = "unauthorized"
	KeyForbidden    = "forbidden"
	KeyNotFound     = "not_found"
	KeyMethod       = "method_not_allowed"
	KeyUnavailable  = "service_unavailable"
	KeyInternal     = "internal_server_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Key       string    `json:"key"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func newErrorResponse(key, message string, status int) ErrorResponse {
	return ErrorResponse{Key: key, Message: message, Status: status, Timestamp: time.Now().UTC()}
}

// classify maps a service error onto an HTTP status, error key, and client message.
func classify(path string, err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, KeyValidation, publicMessage(err)
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests, KeyRateLimited, publicMessage(err)
	case errors.Is(err, services.ErrSecurityViolation):
		return http.StatusForbidden, KeyForbidden, publicMessage(err)
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, KeyNotFound, publicMessage(err)
	case errors.Is(err, services.ErrBusy), errors.Is(err, services.ErrInsufficientResource):
		return http.StatusServiceUnavailable, KeyUnavailable, publicMessage(err)
	}
	prefix := "An unexpected error occurred: "
	if strings.Contains(path, "/convert") {
		prefix = "Error during video conversion: "
	}
	return http.StatusInternalServerError, KeyInternal, prefix + err.Error()
}

// publicMessage keeps the last segment of a wrapped service error, which is
// the human-readable detail for errors built without a cause.
func publicMessage(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		return msg[idx+2:]
	}
	return msg
}
