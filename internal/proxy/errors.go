package proxy

import (
	"errors"

	"github.com/h1v3-io/muninn/internal/backend"
)

// errorResponse is the wire shape every failed request is translated
// into, matching the Anthropic Messages API's own error envelope.
type errorResponse struct {
	Type  string      `json:"type"`
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorResponse(errType, message string) errorResponse {
	return errorResponse{Type: "error", Error: errorDetail{Type: errType, Message: message}}
}

// classifyBackendError maps one of internal/backend's taxonomy types to
// the stable error.type string the wire contract promises and the HTTP
// status to answer with. This is the one place that translation happens,
// so a caller never sees a bare 5xx with no structured body.
func classifyBackendError(err error) (status int, errType string, message string) {
	var netErr *backend.NetworkError
	var authErr *backend.AuthError
	var rateErr *backend.RateLimitError
	var badReqErr *backend.BadRequestError
	var upstream5xx *backend.Upstream5xxError
	var canceledErr *backend.CanceledError
	var timeoutErr *backend.TimeoutError

	switch {
	case errors.As(err, &authErr):
		return 401, "authentication_error", authErr.Error()
	case errors.As(err, &rateErr):
		return 429, "rate_limit_error", rateErr.Error()
	case errors.As(err, &badReqErr):
		return 400, "invalid_request_error", badReqErr.Error()
	case errors.As(err, &upstream5xx):
		return 502, "api_error", upstream5xx.Error()
	case errors.As(err, &canceledErr):
		return 503, "api_error", canceledErr.Error()
	case errors.As(err, &timeoutErr):
		return 504, "api_error", timeoutErr.Error()
	case errors.As(err, &netErr):
		return 502, "overloaded", netErr.Error()
	default:
		return 500, "api_error", err.Error()
	}
}
