package apierror

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON_BasicFields(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)

	WriteJSON(w, r, http.StatusForbidden, Forbidden, MsgForbidden)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error != "Forbidden" {
		t.Errorf("error = %q, want %q", resp.Error, "Forbidden")
	}
	if resp.ErrorCode != "EXECUTOR_FORBIDDEN" {
		t.Errorf("error_code = %q, want %q", resp.ErrorCode, "EXECUTOR_FORBIDDEN")
	}
	if resp.Message != MsgForbidden {
		t.Errorf("message = %q, want %q", resp.Message, MsgForbidden)
	}
}

func TestWriteJSON_IncludesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	r.Header.Set("X-Request-ID", "req-123")

	WriteJSON(w, r, http.StatusUnauthorized, AuthMissingToken, MsgMissingToken)

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RequestID != "req-123" {
		t.Errorf("request_id = %q, want %q", resp.RequestID, "req-123")
	}
}

func TestWriteJSON_PreSerializedMatchesEncoded(t *testing.T) {
	pre := httptest.NewRecorder()
	WriteJSON(pre, nil, http.StatusTooManyRequests, RateLimitExceeded, MsgRateLimitExceeded)

	if strings.Contains(pre.Body.String(), "request_id") {
		t.Error("request_id should be omitted when empty")
	}

	var got ErrorResponse
	if err := json.Unmarshal(pre.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := ErrorResponse{
		Error:     "Too Many Requests",
		ErrorCode: "EXECUTOR_RATE_LIMIT_EXCEEDED",
		Message:   MsgRateLimitExceeded,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestWriteJSON_CustomMessage(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, nil, http.StatusUnprocessableEntity, ReloadFailed, "parsing config: bad toml")

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ErrorCode != "EXECUTOR_RELOAD_FAILED" {
		t.Errorf("error_code = %q", resp.ErrorCode)
	}
	if resp.Message != "parsing config: bad toml" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestAllErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		Forbidden, AuthMissingToken, AuthInvalidToken, AuthInsufficientScope,
		RateLimitExceeded, ReloadFailed, InternalError,
	}
	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if !strings.HasPrefix(string(code), "EXECUTOR_") {
			t.Errorf("code %q does not have EXECUTOR_ prefix", code)
		}
		if seen[code] {
			t.Errorf("duplicate code %q", code)
		}
		seen[code] = true
	}
}
