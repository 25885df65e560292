package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyResponse is returned when the provider answers successfully
// but with no text content.
var ErrEmptyResponse = errors.New("llm: empty response")

// PermanentError marks a failure that retrying cannot fix, such as an
// invalid API key or a prompt over the provider's context window.
type PermanentError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Provider, e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err carries a PermanentError anywhere in
// its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// RateLimitError indicates the provider rejected the call for quota
// reasons. RetryAfter is zero when the provider gave no hint.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm %s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("llm %s: rate limited", e.Provider)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimit reports whether err carries a RateLimitError anywhere in
// its chain.
func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}
