package flows

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authpipe/refresh"
	"github.com/MrEthical07/authpipe/tokenstore"
)

// RefreshCallDeps captures the refresh endpoint dependencies.
type RefreshCallDeps struct {
	Endpoint string
	Device   string
	Do       func(*http.Request) (*http.Response, error)
}

// RunRefreshCall exchanges refreshToken for a new pair.
//
// A 401 or 403, or a 400 naming invalid_grant or invalid_token, is an
// explicit rejection and the error wraps refresh.ErrDenied. Any other
// non-2xx status, a network error or an undecodable body is returned as is
// and counts as a transport failure.
func RunRefreshCall(ctx context.Context, refreshToken string, deps RefreshCallDeps) (tokenstore.TokenPair, error) {
	req, err := JSONRequest(ctx, http.MethodPost, deps.Endpoint, refreshRequest{
		RefreshToken: refreshToken,
		Device:       deps.Device,
	})
	if err != nil {
		return tokenstore.TokenPair{}, err
	}

	resp, err := deps.Do(req)
	if err != nil {
		return tokenstore.TokenPair{}, err
	}
	if !is2xx(resp.StatusCode) {
		statusErr := NewStatusError(resp)
		if isRefreshRejection(statusErr) {
			return tokenstore.TokenPair{}, fmt.Errorf("%w: %w", refresh.ErrDenied, statusErr)
		}
		return tokenstore.TokenPair{}, statusErr
	}
	return decodeTokens(resp)
}

func isRefreshRejection(e *StatusError) bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusBadRequest:
		return oauthRejection(e.Body)
	default:
		return false
	}
}
