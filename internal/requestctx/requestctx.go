// Package requestctx carries request-scoped values through context so
// domain code never imports the transport layer.
package requestctx

import "context"

type requestIDKey struct{}

// WithRequestID tags the context with the correlation id assigned to the
// incoming request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the correlation id, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
