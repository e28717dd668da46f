package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew_Retryable(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeTimeout, true},
		{ErrCodeNetwork, true},
		{ErrCodeHTTP, true},
		{ErrCodeSessionExpired, false},
		{ErrCodeRetriesExhausted, false},
		{ErrCodeDecode, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			if got := New(tc.code, "x").Retryable; got != tc.want {
				t.Errorf("retryable = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHTTP_UsesBackendMessage(t *testing.T) {
	body := []byte(`{"error":{"code":"NOT_FOUND","message":"job 42 not found"}}`)
	err := HTTP(http.StatusNotFound, body)
	if err.Message != "job 42 not found" {
		t.Errorf("expected backend message, got %q", err.Message)
	}
	if err.StatusCode != 404 {
		t.Errorf("expected 404, got %d", err.StatusCode)
	}
	if !err.Retryable {
		t.Error("HTTP errors are retryable by default")
	}
}

func TestHTTP_FallsBackToStatusText(t *testing.T) {
	err := HTTP(http.StatusBadGateway, []byte("<html>oops</html>"))
	if err.Message != "Bad Gateway" {
		t.Errorf("expected status text, got %q", err.Message)
	}
}

func TestRetriesExhausted_WrapsLast(t *testing.T) {
	last := HTTP(503, nil)
	err := RetriesExhausted(4, last)

	if err.Attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", err.Attempts)
	}
	if err.StatusCode != 503 {
		t.Errorf("expected status propagated, got %d", err.StatusCode)
	}
	if !IsRetriesExhausted(err) {
		t.Error("expected IsRetriesExhausted")
	}
	if !IsHTTP(err) {
		t.Error("IsHTTP should look through the exhausted wrapper")
	}
	if IsRetryable(err) {
		t.Error("exhausted errors are terminal")
	}
	if !stderrors.Is(err, last) {
		t.Error("expected errors.Is to reach the last cause")
	}
}

func TestPredicates_ThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("list jobs: %w", RetriesExhausted(2, Timeout(context.DeadlineExceeded)))
	if !IsTimeout(err) {
		t.Error("expected IsTimeout through fmt wrap")
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Error("expected DeadlineExceeded in chain")
	}
	if IsSessionExpired(err) {
		t.Error("unexpected SESSION_EXPIRED")
	}
}

func TestSessionExpired(t *testing.T) {
	err := SessionExpired()
	if err.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", err.StatusCode)
	}
	if err.Retryable {
		t.Error("SESSION_EXPIRED must not be retryable")
	}
	if !IsSessionExpired(err) {
		t.Error("expected IsSessionExpired")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := Network(stderrors.New("connection refused"))
	s := err.Error()
	if !strings.HasPrefix(s, "NETWORK_ERROR: connection refused") {
		t.Errorf("unexpected string %q", s)
	}

	s = HTTP(500, nil).Error()
	if !strings.Contains(s, "HTTP 500") {
		t.Errorf("expected status in %q", s)
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(stderrors.New("plain")); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := StatusCode(HTTP(429, nil)); got != 429 {
		t.Errorf("expected 429, got %d", got)
	}
}

func TestParseErrorResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"empty", "", false},
		{"not json", "nope", false},
		{"foreign json", `{"message":"x"}`, false},
		{"envelope", `{"error":{"code":"HTTP_ERROR","message":"boom"}}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := ParseErrorResponse([]byte(tc.body))
			if ok != tc.ok {
				t.Errorf("ok = %v, want %v", ok, tc.ok)
			}
		})
	}
}

func TestToResponse(t *testing.T) {
	resp := HTTP(500, nil).WithDetail("endpoint", "/jobs").ToResponse()
	if resp.Error.Code != ErrCodeHTTP {
		t.Errorf("expected HTTP_ERROR, got %s", resp.Error.Code)
	}
	if resp.Error.Details["endpoint"] != "/jobs" {
		t.Errorf("expected endpoint detail, got %v", resp.Error.Details)
	}
}
