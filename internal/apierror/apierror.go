// Package apierror defines the JSON error body returned by the executor's
// HTTP endpoints, with stable machine-readable error codes.
package apierror

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is a machine-readable error classification string.
type ErrorCode string

// Clients may match on these codes. Existing values must not change.
const (
	Forbidden             ErrorCode = "EXECUTOR_FORBIDDEN"
	AuthMissingToken      ErrorCode = "EXECUTOR_AUTH_MISSING_TOKEN"
	AuthInvalidToken      ErrorCode = "EXECUTOR_AUTH_INVALID_TOKEN"
	AuthInsufficientScope ErrorCode = "EXECUTOR_AUTH_INSUFFICIENT_SCOPE"
	RateLimitExceeded     ErrorCode = "EXECUTOR_RATE_LIMIT_EXCEEDED"
	ReloadFailed          ErrorCode = "EXECUTOR_RELOAD_FAILED"
	InternalError         ErrorCode = "EXECUTOR_INTERNAL_ERROR"
)

// ErrorResponse is the error body shared by all endpoints.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Standard messages with pre-built bodies.
const (
	MsgForbidden         = "client address not allowed"
	MsgMissingToken      = "missing or malformed Authorization header"
	MsgRateLimitExceeded = "rate limit exceeded, retry later"
)

type preKey struct {
	status int
	code   ErrorCode
	msg    string
}

// Bodies for the common rejections, without request_id.
var preSerialized = map[preKey][]byte{}

func init() {
	for _, k := range []preKey{
		{http.StatusForbidden, Forbidden, MsgForbidden},
		{http.StatusUnauthorized, AuthMissingToken, MsgMissingToken},
		{http.StatusTooManyRequests, RateLimitExceeded, MsgRateLimitExceeded},
	} {
		preSerialized[k] = marshal(ErrorResponse{
			Error:     http.StatusText(k.status),
			ErrorCode: string(k.code),
			Message:   k.msg,
		})
	}
}

func marshal(resp ErrorResponse) []byte {
	b, _ := json.Marshal(resp)
	return append(b, '\n')
}

// WriteJSON writes a structured JSON error response. The X-Request-ID
// header of r, when present, is echoed as request_id. r may be nil.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, code ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	requestID := ""
	if r != nil {
		requestID = r.Header.Get("X-Request-ID")
	}

	if requestID == "" {
		if body, ok := preSerialized[preKey{status, code, message}]; ok {
			w.Write(body) //nolint:errcheck
			return
		}
	}

	w.Write(marshal(ErrorResponse{ //nolint:errcheck
		Error:     http.StatusText(status),
		ErrorCode: string(code),
		Message:   message,
		RequestID: requestID,
	}))
}
