package flows

import (
	"context"
	"net/http"
	"time"
)

// LogoutDeps captures logout notification dependencies.
type LogoutDeps struct {
	Endpoint string
	Device   string
	Timeout  time.Duration
	Do       func(*http.Request) (*http.Response, error)
}

// RunLogoutNotify tells the server that refreshToken is no longer in use.
// It is run detached from the caller; failures are only reported.
func RunLogoutNotify(ctx context.Context, refreshToken string, deps LogoutDeps) error {
	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}

	req, err := JSONRequest(ctx, http.MethodPost, deps.Endpoint, refreshRequest{
		RefreshToken: refreshToken,
		Device:       deps.Device,
	})
	if err != nil {
		return err
	}
	resp, err := deps.Do(req)
	if err != nil {
		return err
	}
	if !is2xx(resp.StatusCode) {
		return NewStatusError(resp)
	}
	Drain(resp)
	return nil
}
