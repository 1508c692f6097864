package profiler

import "context"

type contextKey int

const runKey contextKey = iota

// WithRun returns a context carrying the run.
func WithRun(ctx context.Context, r *Run) context.Context {
	return context.WithValue(ctx, runKey, r)
}

func RunFromContext(ctx context.Context) (*Run, bool) {
	r, ok := ctx.Value(runKey).(*Run)
	return r, ok && r != nil
}
