package tester

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func message(msgAndArgs ...any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if format, ok := msgAndArgs[0].(string); ok && len(msgAndArgs) > 1 {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprintf("%v", msgAndArgs[0])
}

// Eq asserts that got == want using reflect.DeepEqual for non-comparable types.
func Eq[T any](t *testing.T, got, want T, msgAndArgs ...any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s: got=%v want=%v", msg, got, want)
		}
		t.Fatalf("got=%v want=%v", got, want)
	}
}

// True asserts that cond is true.
func True(t *testing.T, cond bool, msgAndArgs ...any) {
	t.Helper()
	if !cond {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s", msg)
		}
		t.Fatalf("expected condition to be true")
	}
}

// False asserts that cond is false.
func False(t *testing.T, cond bool, msgAndArgs ...any) {
	t.Helper()
	if cond {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s", msg)
		}
		t.Fatalf("expected condition to be false")
	}
}

// NoErr asserts that err is nil.
func NoErr(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s: %v", msg, err)
		}
		t.Fatalf("unexpected error: %v", err)
	}
}

// Err asserts that err is non-nil.
func Err(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s: expected an error", msg)
		}
		t.Fatalf("expected an error")
	}
}

// Contains asserts that s contains substr.
func Contains(t *testing.T, s, substr string, msgAndArgs ...any) {
	t.Helper()
	if !strings.Contains(s, substr) {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s: %q not found in %q", msg, substr, s)
		}
		t.Fatalf("%q not found in %q", substr, s)
	}
}
