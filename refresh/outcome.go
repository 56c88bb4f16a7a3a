package refresh

import (
	"errors"

	"github.com/MrEthical07/authpipe/tokenstore"
)

var (
	// ErrDenied must be returned (or wrapped) by a Refresher when the server
	// explicitly rejects the refresh token.
	ErrDenied = errors.New("refresh token rejected")
	// ErrNoRefreshToken reports that no refresh token was stored.
	ErrNoRefreshToken = errors.New("no refresh token stored")
	// ErrCircuitOpen reports that recent refresh calls kept failing.
	ErrCircuitOpen = errors.New("refresh circuit open")
	// ErrThrottled reports that the refresh rate limit was exhausted.
	ErrThrottled = errors.New("refresh rate limit exceeded")
	// ErrMalformedResponse reports a refresh response without an access token.
	ErrMalformedResponse = errors.New("refresh response carried no access token")
)

// Kind classifies a refresh outcome.
type Kind uint8

const (
	Success Kind = iota + 1
	Denied
	TransportFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Denied:
		return "denied"
	case TransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Outcome is the single result shared by the leader and its followers.
// Tokens is set only on Success; Err carries the cause otherwise.
type Outcome struct {
	Kind   Kind
	Tokens tokenstore.TokenPair
	Err    error
}

func (o Outcome) Succeeded() bool {
	return o.Kind == Success
}

// Local reports a transport failure decided by the coordinator's own storm
// cap (rate limit or open breaker). No refresh request was sent, so the
// credentials say nothing about the session.
func (o Outcome) Local() bool {
	return o.Kind == TransportFailure &&
		(errors.Is(o.Err, ErrThrottled) || errors.Is(o.Err, ErrCircuitOpen))
}

func succeeded(pair tokenstore.TokenPair) Outcome {
	return Outcome{Kind: Success, Tokens: pair}
}

func denied(cause error) Outcome {
	return Outcome{Kind: Denied, Err: cause}
}

func transportFailure(cause error) Outcome {
	return Outcome{Kind: TransportFailure, Err: cause}
}
