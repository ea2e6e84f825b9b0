package backend

import "context"

// RequestIDHeader carries the client correlation id on every request.
const RequestIDHeader = "x-ms-client-request-id"

type requestIDContextKey struct{}

// WithRequestID stores the invocation correlation id in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the correlation id stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
