// Package errors holds the shared error vocabulary: sentinels the
// stores and handlers agree on, and APIError for failures of external
// services. Import it aliased (apperr) to avoid clashing with the
// standard library.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound means the requested key or record does not exist.
	ErrNotFound = stderrors.New("not found")
	// ErrInvalidInput means the caller's request cannot be processed.
	ErrInvalidInput = stderrors.New("invalid input")
	// ErrUnavailable means a required backing service is unreachable.
	ErrUnavailable = stderrors.New("unavailable")
)

// APIError describes a failed call to an external service.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsRetryable reports whether err looks transient: rate limiting,
// server-side failures, or timeouts.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode >= 500:
			return true
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return true
		}
		return false
	}
	return stderrors.Is(err, ErrUnavailable)
}

// IsPermanent reports whether err is a client-side failure retrying
// cannot fix.
func IsPermanent(err error) bool {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
			apiErr.StatusCode != http.StatusTooManyRequests &&
			apiErr.StatusCode != http.StatusRequestTimeout
	}
	return stderrors.Is(err, ErrInvalidInput)
}
