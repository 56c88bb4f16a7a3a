package jwt

import "errors"

var (
	// ErrInvalidToken is returned for malformed, unverifiable, expiry-less or
	// expired tokens. The decode cause is wrapped.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrInvalidKey reports an unusable signing or verification key.
	ErrInvalidKey = errors.New("invalid key")
)
