package bitbucket

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{http.StatusUnauthorized, ErrorClassAuth},
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusForbidden, ErrorClassClient},
		{http.StatusNotFound, ErrorClassClient},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusBadGateway, ErrorClassServer},
		{http.StatusServiceUnavailable, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassServer, true},
		{ErrorClassNetwork, true},
		{ErrorClassAuth, false},
		{ErrorClassClient, false},
		{ErrorClassRateLimit, false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%s) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{
		StatusCode: 401,
		Class:      ErrorClassAuth,
		Message:    "401 Unauthorized",
		Hint:       "check credentials",
	}

	msg := err.Error()
	if !strings.Contains(msg, "auth") || !strings.Contains(msg, "401") {
		t.Errorf("message %q should carry class and status", msg)
	}
	if !strings.Contains(msg, "check credentials") {
		t.Errorf("message %q should carry the hint", msg)
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &APIError{Class: ErrorClassNetwork, Message: "connection failure", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("APIError should unwrap to its cause")
	}

	wrapped := fmt.Errorf("fetching commits: %w", err)
	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Error("wrapped APIError should be recoverable with errors.As")
	}
}

func TestIsAuthError(t *testing.T) {
	auth := &APIError{StatusCode: 401, Class: ErrorClassAuth, Message: "401 Unauthorized"}
	if !IsAuthError(auth) {
		t.Error("401 APIError should be an auth error")
	}
	if !IsAuthError(fmt.Errorf("list repositories: %w", auth)) {
		t.Error("wrapped auth error should still be detected")
	}
	if IsAuthError(&APIError{StatusCode: 404, Class: ErrorClassClient}) {
		t.Error("client error must not register as auth error")
	}
	if IsAuthError(errors.New("plain")) {
		t.Error("plain error must not register as auth error")
	}
}
