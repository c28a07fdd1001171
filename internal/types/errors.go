// Package types provides shared types, interfaces, and errors for the application.
package types

import "errors"

// Sentinel errors for consistent error handling across the application.
// These errors can be checked with errors.Is() for type-safe error handling.
var (
	// Validation errors
	ErrInvalidRequest  = errors.New("invalid request")
	ErrEmbedURLBlocked = errors.New("embed url failed SSRF validation")
	ErrInvalidTimeout  = errors.New("timeout value out of allowed range")
	ErrInvalidPriority = errors.New("priority value out of allowed range")

	// Auth errors
	ErrUnauthorized = errors.New("missing or invalid bearer token")

	// Extraction outcome errors
	ErrExtractionTimeout = errors.New("no manifest observed within timeout")
	ErrManifestNotFound  = errors.New("manifest was never requested by the page")

	// Circuit breaker errors
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// Browser errors
	ErrBrowserLaunchFailed = errors.New("browser launch failed")
	ErrBrowserDisconnected = errors.New("browser disconnected unexpectedly")
	ErrContextCreateFailed = errors.New("failed to create isolated browser context")

	// Context errors
	ErrContextCanceled = errors.New("operation canceled")
)

// ExtractionError carries the classified failure category alongside the
// underlying cause, so handlers can map it to the right HTTP status and
// metrics label without re-deriving the category from the error chain.
type ExtractionError struct {
	Category string // "validation", "auth", "timeout", "circuit_open", "browser_error"
	URL      string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewValidationError creates an error for malformed or SSRF-blocked URLs.
func NewValidationError(url string, err error) *ExtractionError {
	return &ExtractionError{
		Category: "validation",
		URL:      url,
		Message:  "request failed validation: " + err.Error(),
		Err:      err,
	}
}

// NewTimeoutError creates an error for an extraction that never observed a manifest.
func NewTimeoutError(url string) *ExtractionError {
	return &ExtractionError{
		Category: "timeout",
		URL:      url,
		Message:  "no manifest observed within the allotted timeout",
		Err:      ErrExtractionTimeout,
	}
}

// NewCircuitOpenError creates an error for a task rejected by the breaker,
// carrying the remaining cool-down so the caller can surface it.
func NewCircuitOpenError(remaining string) *ExtractionError {
	return &ExtractionError{
		Category: "circuit_open",
		Message:  "circuit breaker is open, retry after " + remaining,
		Err:      ErrCircuitOpen,
	}
}

// NewBrowserError creates an error for launch failures, disconnects, or
// driver call failures that abort a task.
func NewBrowserError(reason string, err error) *ExtractionError {
	return &ExtractionError{
		Category: "browser_error",
		Message:  "browser error: " + reason,
		Err:      err,
	}
}
