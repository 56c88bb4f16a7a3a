package tokenstore

import "context"

const (
	// DefaultAccessKey is the storage key of the access token.
	DefaultAccessKey = "AccessToken"
	// DefaultRefreshKey is the storage key of the refresh token.
	DefaultRefreshKey = "RefreshToken"
)

// KeyValue is the secure, durable string store credentials are persisted in.
// Get reports found=false for a missing key; a missing key is not an error.
type KeyValue interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Batch is implemented by backends that can write several keys atomically.
// Store prefers it over per-key calls when available.
type Batch interface {
	SetAll(ctx context.Context, values map[string]string) error
	RemoveAll(ctx context.Context, keys ...string) error
}
