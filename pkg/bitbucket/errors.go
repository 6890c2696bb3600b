package bitbucket

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass classifies request failures for retry decisions and
// observability.
type ErrorClass string

const (
	// ErrorClassAuth represents 401 responses. Fatal, never retried.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents other 4xx responses. Permanent, never
	// retried.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses. Transient.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses. Handled internally
	// via mandatory wait plus rate reduction; never surfaced to callers.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents connection-level failures. Transient.
	ErrorClassNetwork ErrorClass = "network"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when the transient retry budget
	// (attempt count or total elapsed time) is spent.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context expires during a
	// backoff or rate-limit wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// APIError is a classified Bitbucket API failure.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Hint       string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("bitbucket %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorClassAuth
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry reports whether an error class is retried with backoff.
// Rate-limit responses are handled separately: they wait the server's
// hint and retry without consuming the transient budget.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// IsAuthError reports whether err is a fatal authentication failure.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == ErrorClassAuth
}
