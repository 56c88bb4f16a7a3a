package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderDevice    = "X-Device"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Tripperware wraps a transport.
type Tripperware func(http.RoundTripper) http.RoundTripper

// Chain wraps base with each tripperware; the first one runs outermost.
func Chain(base http.RoundTripper, wares ...Tripperware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(wares) - 1; i >= 0; i-- {
		base = wares[i](base)
	}
	return base
}

type requestIDContextKey struct{}

// WithRequestID pins the request ID sent for requests made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the pinned request ID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// RequestID sets X-Request-ID unless the request already has one. The value
// comes from the request context or a new UUID.
func RequestID() Tripperware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(HeaderRequestID) != "" {
				return next.RoundTrip(req)
			}
			id := RequestIDFromContext(req.Context())
			if id == "" {
				id = uuid.NewString()
			}
			req = req.Clone(req.Context())
			req.Header.Set(HeaderRequestID, id)
			return next.RoundTrip(req)
		})
	}
}

// Device sets X-Device to name. An empty name disables the header.
func Device(name string) Tripperware {
	return func(next http.RoundTripper) http.RoundTripper {
		if name == "" {
			return next
		}
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			req.Header.Set(HeaderDevice, name)
			return next.RoundTrip(req)
		})
	}
}
