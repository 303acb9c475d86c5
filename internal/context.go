package internal

import (
	"context"
)

type contextKey string

var (
	RunIDContextKey contextKey = "migration-run-id"
)

// WithRunID tags the context with the migration run identifier so that
// every log line of the run carries it.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDContextKey, runID)
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(RunIDContextKey).(string)
	return runID, ok
}
