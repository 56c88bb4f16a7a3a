package flows

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/authpipe/tokenstore"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureBuild
	LoginFailureTransport
	LoginFailureCancelled
	LoginFailureRejected
	LoginFailureDecode
	LoginFailureStore
)

// LoginResult is the flow-local login response shape. PersistErr is set when
// the credentials were accepted in memory but could not be persisted.
type LoginResult struct {
	Failure    LoginFailureKind
	Err        error
	Tokens     tokenstore.TokenPair
	PersistErr error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Endpoint   string
	Device     string
	DeviceInfo string
	Do         func(*http.Request) (*http.Response, error)
	Store      func(ctx context.Context, pair tokenstore.TokenPair) error
	// IsPersistErr separates lost durability from a rejected pair.
	IsPersistErr func(error) bool
}

// RunLogin posts credentials and stores the returned pair.
func RunLogin(ctx context.Context, login, password string, deps LoginDeps) LoginResult {
	req, err := JSONRequest(ctx, http.MethodPost, deps.Endpoint, loginRequest{
		Login:      login,
		Password:   password,
		Device:     deps.Device,
		DeviceInfo: deps.DeviceInfo,
	})
	if err != nil {
		return LoginResult{Failure: LoginFailureBuild, Err: err}
	}

	resp, err := deps.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return LoginResult{Failure: LoginFailureCancelled, Err: ctxErr}
		}
		return LoginResult{Failure: LoginFailureTransport, Err: err}
	}
	if !is2xx(resp.StatusCode) {
		return LoginResult{Failure: LoginFailureRejected, Err: NewStatusError(resp)}
	}

	pair, err := decodeTokens(resp)
	if err != nil {
		return LoginResult{Failure: LoginFailureDecode, Err: cancelled(ctx, err)}
	}
	if pair.AccessToken == "" {
		return LoginResult{Failure: LoginFailureDecode, Err: errors.New("login response carried no access token")}
	}

	// the server already issued the pair; commit it even if ctx ended meanwhile
	if err := deps.Store(context.WithoutCancel(ctx), pair); err != nil {
		if deps.IsPersistErr != nil && deps.IsPersistErr(err) {
			return LoginResult{Tokens: pair, PersistErr: err}
		}
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}
	return LoginResult{Tokens: pair}
}
