// Package runctx carries pipeline run metadata through context so
// lower layers (LLM middleware, retrieval, stores) can attribute work
// to a run and routine without threading extra parameters.
package runctx

import (
	"context"
	"strings"
)

type ctxKeyRunScope struct{}

// RunScope identifies the pipeline run and the routine currently being
// generated. Both fields may be empty outside a pipeline run.
type RunScope struct {
	RunID   string
	Routine string
}

func normalize(s string) string { return strings.TrimSpace(s) }

func WithRunScope(ctx context.Context, rs RunScope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	rs.RunID = normalize(rs.RunID)
	rs.Routine = normalize(rs.Routine)
	return context.WithValue(ctx, ctxKeyRunScope{}, rs)
}

func RunScopeFrom(ctx context.Context) RunScope {
	if ctx != nil {
		if v := ctx.Value(ctxKeyRunScope{}); v != nil {
			if rs, ok := v.(RunScope); ok {
				return rs
			}
		}
	}
	return RunScope{}
}

func WithRunID(ctx context.Context, id string) context.Context {
	rs := RunScopeFrom(ctx)
	rs.RunID = id
	return WithRunScope(ctx, rs)
}

func RunIDFrom(ctx context.Context) string {
	return RunScopeFrom(ctx).RunID
}

func WithRoutine(ctx context.Context, name string) context.Context {
	rs := RunScopeFrom(ctx)
	rs.Routine = name
	return WithRunScope(ctx, rs)
}

func RoutineFrom(ctx context.Context) string {
	return RunScopeFrom(ctx).Routine
}
