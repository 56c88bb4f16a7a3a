package authpipe

import (
	"context"

	"github.com/MrEthical07/authpipe/middleware"
)

// WithRequestID fixes the X-Request-ID sent with requests made under ctx.
// Without it every attempt gets a fresh ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return middleware.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.RequestIDFromContext(ctx)
}
