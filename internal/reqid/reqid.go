// Package reqid threads the request id through contexts so log lines
// and downstream calls can reference it.
package reqid

import "context"

type contextKey struct{}

// With returns a context carrying the request id. Empty ids are not
// stored.
func With(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, requestID)
}

// From returns the request id from the context, or "" if not set.
func From(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(contextKey{}).(string)
	return s
}
