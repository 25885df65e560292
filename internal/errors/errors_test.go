package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"laddergen/internal/tester"
)

func TestAPIErrorUnwrap(t *testing.T) {
	inner := stderrors.New("connection reset")
	err := &APIError{Service: "chroma", StatusCode: 503, Message: "upstream", Err: inner}

	tester.Contains(t, err.Error(), "chroma")
	tester.Contains(t, err.Error(), "503")
	tester.True(t, stderrors.Is(err, inner))
}

func TestIsRetryable(t *testing.T) {
	tester.True(t, IsRetryable(&APIError{Service: "s", StatusCode: 429}))
	tester.True(t, IsRetryable(&APIError{Service: "s", StatusCode: 500}))
	tester.True(t, IsRetryable(&APIError{Service: "s", StatusCode: 408}))
	tester.False(t, IsRetryable(&APIError{Service: "s", StatusCode: 404}))
	tester.True(t, IsRetryable(fmt.Errorf("wrap: %w", ErrUnavailable)))
	tester.False(t, IsRetryable(stderrors.New("plain")))
}

func TestIsPermanent(t *testing.T) {
	tester.True(t, IsPermanent(&APIError{Service: "s", StatusCode: 400}))
	tester.True(t, IsPermanent(&APIError{Service: "s", StatusCode: 404}))
	tester.False(t, IsPermanent(&APIError{Service: "s", StatusCode: 429}))
	tester.False(t, IsPermanent(&APIError{Service: "s", StatusCode: 500}))
	tester.True(t, IsPermanent(fmt.Errorf("wrap: %w", ErrInvalidInput)))
}
