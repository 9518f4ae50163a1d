// Package httputil provides shared HTTP response helpers for the ops API.
package httputil

import (
	"github.com/gin-gonic/gin"

	"github.com/gamecafe/panelsync/internal/metrics"
)

// Error codes carried in ErrorBody.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal_error"
	CodeBodyTooLarge   = "body_too_large"
	CodeUnavailable    = "unavailable"
	CodeUpstream       = "upstream_error"
)

// ErrorBody is the JSON shape of every ops API error.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondError writes a standardized JSON error response and aborts the request.
func RespondError(c *gin.Context, status int, code, message string) {
	metrics.APIErrorsTotal.WithLabelValues(code).Inc()

	c.AbortWithStatusJSON(status, ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: c.GetString("request_id"),
	})
}
