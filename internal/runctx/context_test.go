package runctx

import (
	"context"
	"testing"

	"laddergen/internal/tester"
)

func TestRunScopeRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-42")
	ctx = WithRoutine(ctx, "Safety_Interlocks")

	tester.Eq(t, RunIDFrom(ctx), "run-42")
	tester.Eq(t, RoutineFrom(ctx), "Safety_Interlocks")

	rs := RunScopeFrom(ctx)
	tester.Eq(t, rs.RunID, "run-42")
	tester.Eq(t, rs.Routine, "Safety_Interlocks")
}

func TestRunScopeEmptyContext(t *testing.T) {
	tester.Eq(t, RunIDFrom(context.Background()), "")
	tester.Eq(t, RoutineFrom(context.Background()), "")
}

func TestRunScopeNilContext(t *testing.T) {
	ctx := WithRunScope(nil, RunScope{RunID: "  r1 ", Routine: " Auto_Sequence "})
	tester.Eq(t, RunIDFrom(ctx), "r1")
	tester.Eq(t, RoutineFrom(ctx), "Auto_Sequence")
}

func TestRoutineOverwriteKeepsRunID(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-7")
	ctx = WithRoutine(ctx, "first")
	ctx = WithRoutine(ctx, "second")

	tester.Eq(t, RunIDFrom(ctx), "run-7")
	tester.Eq(t, RoutineFrom(ctx), "second")
}
