package agent

import (
	"errors"
	"fmt"
)

// ErrorResponse is the backend's error body shape.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ErrEmptyPayload marks a data frame whose payload was empty or
// whitespace-only.
var ErrEmptyPayload = errors.New("empty event payload")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}

	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

// ParseError reports a stream payload that could not be decoded into an
// Event. It is recoverable: the pipeline surfaces it as a diagnostic and
// keeps reading, so a ParseError never terminates a stream by itself.
type ParseError struct {
	// Payload is the offending raw payload text.
	Payload string

	// Err is the underlying decode error, or ErrEmptyPayload.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse event payload %q: %v", e.Payload, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
