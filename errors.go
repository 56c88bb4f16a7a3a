package authpipe

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authpipe/jwt"
	"github.com/MrEthical07/authpipe/refresh"
)

var (
	// ErrSessionEnded is returned by Execute when the credentials were
	// rejected and could not be refreshed. It wraps the refresh cause.
	ErrSessionEnded = errors.New("session ended")
	// ErrRefreshDenied is wrapped by ErrSessionEnded when the server rejected
	// the refresh token.
	ErrRefreshDenied = refresh.ErrDenied
	// ErrNoRefreshToken is wrapped by ErrSessionEnded when no refresh token
	// was stored.
	ErrNoRefreshToken = refresh.ErrNoRefreshToken
	// ErrRefreshUnavailable is returned instead of ErrSessionEnded when
	// Refresh.EndSessionOnTransportFailure is false and the refresh endpoint
	// could not be reached.
	ErrRefreshUnavailable = errors.New("token refresh unavailable")
	// ErrServerRejected matches every *StatusError.
	ErrServerRejected = errors.New("server rejected request")
	// ErrLoginRejected is returned by Login for a non-2xx answer. It wraps
	// the *StatusError.
	ErrLoginRejected = errors.New("login rejected")
	// ErrNotAuthenticated is returned when an operation needs stored
	// credentials and there are none.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrClientClosed is returned by operations started after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrInvalidToken is returned by credential decoding.
	ErrInvalidToken = jwt.ErrInvalidToken
)

// StatusError is a non-2xx response surfaced by the request helpers and by
// Login. Body holds at most the first 4 KiB.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return "server responded " + status
}

// Is reports every StatusError as ErrServerRejected.
func (e *StatusError) Is(target error) bool {
	return target == ErrServerRejected
}
