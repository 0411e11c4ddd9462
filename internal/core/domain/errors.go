package domain

import (
	"errors"
	"fmt"
)

// ErrNoKeys means the relay was started without any upstream credentials.
var ErrNoKeys = errors.New("no API keys configured")

// ValidationError rejects a malformed chat request before any upstream
// attempt is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request field %s: %s", e.Field, e.Reason)
}

// UpstreamError carries a non-success upstream status and its body text.
type UpstreamError struct {
	Body       string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream API error: %d - %s", e.StatusCode, e.Body)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func NewUpstreamError(statusCode int, body string) *UpstreamError {
	return &UpstreamError{StatusCode: statusCode, Body: body}
}
