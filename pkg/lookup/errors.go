package lookup

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrLookupFailed is the root of every failed resolution.
	ErrLookupFailed = errors.New("lookup: asset lookup failed")

	// ErrUnreachable is returned when the backend could not be reached.
	ErrUnreachable = fmt.Errorf("%w: backend unreachable", ErrLookupFailed)

	// ErrEmptyIdentifier is returned for a blank identifier.
	ErrEmptyIdentifier = errors.New("lookup: identifier required")
)

// APIError is a rejection from the asset backend.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the backend's message, or the status text when it sent none.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("lookup: API error %d: %s", e.StatusCode, e.Message)
}

// Unwrap makes every APIError match ErrLookupFailed.
func (e *APIError) Unwrap() error {
	return ErrLookupFailed
}

// IsNotFound returns true if no asset matched the identifier (HTTP 404).
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsUnauthorized returns true if the token was rejected (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
