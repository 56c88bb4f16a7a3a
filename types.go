package authpipe

import (
	"github.com/MrEthical07/authpipe/internal/flows"
	"github.com/MrEthical07/authpipe/jwt"
	"github.com/MrEthical07/authpipe/session"
	"github.com/MrEthical07/authpipe/tokenstore"
)

// RequestBuilder produces a new request for each attempt. Execute calls it
// once per send, so it must be safe to call twice.
type RequestBuilder = flows.RequestBuilder

// TokenPair is the stored credential pair.
type TokenPair = tokenstore.TokenPair

// SessionStatus is the derived authentication status.
type SessionStatus = session.Status

// Principal is the identity decoded from the access token.
type Principal = jwt.Principal

// Observer is a zero-argument change callback.
type Observer = session.Observer

// SessionEndedHook is invoked once per session when the credentials are
// rejected and cannot be refreshed. cause wraps the refresh outcome error.
// It runs synchronously on the goroutine whose request ended the session.
type SessionEndedHook func(cause error)

// LoginResult reports a successful login.
type LoginResult struct {
	Status SessionStatus
	// PersistErr is set when the credentials are held in memory but the
	// backend could not store them.
	PersistErr error
}
