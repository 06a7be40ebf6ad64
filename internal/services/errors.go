package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTimeout marks a request attempt that timed out.
	ErrTimeout = errors.New("request timeout")
	// ErrNetwork marks a request attempt that failed at the network level.
	ErrNetwork = errors.New("network error")
	// ErrUnexpected marks any other failure of a request attempt.
	ErrUnexpected = errors.New("unexpected error")
	// ErrInvalidArgument is returned before any request when input is unusable.
	ErrInvalidArgument = errors.New("invalid argument")
)

// APIError is returned when n8n answers with a status of 400 or above.
// It is never retried.
type APIError struct {
	StatusCode int
	Body       map[string]any
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("n8n API error: %d", e.StatusCode)
	if m, ok := e.Body["message"].(string); ok && m != "" {
		msg += " - " + m
	}
	return msg
}

// newAPIError builds an APIError, keeping the raw text when the body is not JSON.
func newAPIError(status int, body []byte) *APIError {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		parsed = map[string]any{"message": string(body)}
	}
	return &APIError{StatusCode: status, Body: parsed}
}

// TransportError wraps a failed attempt. Kind is one of ErrTimeout,
// ErrNetwork or ErrUnexpected; all three are retried.
type TransportError struct {
	Kind error
	Err  error
}

func (e *TransportError) Error() string {
	// "Request timeout: ...", "Network error: ...", "Unexpected error: ..."
	kind := e.Kind.Error()
	return fmt.Sprintf("%s%s: %v", strings.ToUpper(kind[:1]), kind[1:], e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
