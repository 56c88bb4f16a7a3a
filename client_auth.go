package authpipe

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/MrEthical07/authpipe/internal/flows"
	"github.com/MrEthical07/authpipe/refresh"
	"github.com/MrEthical07/authpipe/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Login posts the credentials and stores the returned pair. A non-2xx
// answer yields an error matching ErrLoginRejected that wraps the
// *StatusError. When the pair is accepted but the backend fails to persist
// it, Login succeeds and LoginResult.PersistErr is set.
func (c *Client) Login(ctx context.Context, login, password string) (LoginResult, error) {
	if c.isClosed() {
		return LoginResult{}, ErrClientClosed
	}

	res := flows.RunLogin(ctx, login, password, flows.LoginDeps{
		Endpoint:   c.endpoint(c.cfg.Paths.Login),
		Device:     c.cfg.Device,
		DeviceInfo: c.cfg.DeviceInfo,
		Do:         c.http.Do,
		Store:      c.store.Set,
		IsPersistErr: func(err error) bool {
			var storeErr *tokenstore.StoreError
			return errors.As(err, &storeErr)
		},
	})

	var err error
	switch res.Failure {
	case flows.LoginFailureNone:
		if res.PersistErr != nil {
			c.metrics.Inc(MetricStorePersistFailure)
			c.logger.Warn("login credentials not persisted", zap.Error(res.PersistErr))
		}
		c.metrics.Inc(MetricLoginSuccess)
		status := c.Status()
		subject := login
		if status.Principal != nil {
			subject = status.Principal.Subject
		}
		c.logger.Info("logged in", zap.String("subject", subject))
		c.emitAudit(ctx, auditEventLoginSuccess, true, subject, nil, nil)
		return LoginResult{Status: status, PersistErr: res.PersistErr}, nil
	case flows.LoginFailureRejected:
		err = fmt.Errorf("%w: %w", ErrLoginRejected, statusError(res.Err))
	default:
		err = res.Err
	}

	c.metrics.Inc(MetricLoginFailure)
	c.logger.Info("login failed", zap.Error(err))
	c.emitAudit(ctx, auditEventLoginFailure, false, login, err, nil)
	return LoginResult{}, err
}

// Refresh forces a coordinated refresh of the stored credentials and joins
// one already in flight. A rejected refresh token ends the session like a
// failed request would. A transport failure keeps the session and returns
// an error matching ErrRefreshUnavailable.
func (c *Client) Refresh(ctx context.Context) (SessionStatus, error) {
	if c.isClosed() {
		return SessionStatus{}, ErrClientClosed
	}
	access := c.accessToken()
	if access == "" {
		return SessionStatus{}, ErrNotAuthenticated
	}

	outcome, err := c.coordinator.Refresh(ctx, access)
	if err != nil {
		return SessionStatus{}, err
	}
	switch outcome.Kind {
	case refresh.Success:
		return c.Status(), nil
	case refresh.Denied:
		c.endSession(context.WithoutCancel(ctx), access, outcome.Err)
		return SessionStatus{}, fmt.Errorf("%w: %w", ErrSessionEnded, outcome.Err)
	default:
		return SessionStatus{}, fmt.Errorf("%w: %w", ErrRefreshUnavailable, outcome.Err)
	}
}

// Logout clears the stored credentials and returns without waiting for the
// server. The refresh token is posted to the logout endpoint from a
// background goroutine; its failure is only logged. Close waits for it.
// The session-ended hook is not fired. A non-nil error reports that the
// backend could not be cleared; the in-memory session is gone regardless.
func (c *Client) Logout(ctx context.Context) error {
	c.life.RLock()
	defer c.life.RUnlock()
	if c.closed {
		return ErrClientClosed
	}

	pair := c.store.Get()
	subject := c.currentSubject()
	c.markEnded()
	err := c.store.Clear(context.WithoutCancel(ctx))
	if err != nil {
		c.logger.Warn("clearing credentials on logout failed", zap.Error(err))
	}
	c.metrics.Inc(MetricLogout)
	c.emitAudit(ctx, auditEventLogout, true, subject, nil, nil)

	if pair.RefreshToken == "" {
		return err
	}

	detached := context.WithoutCancel(ctx)
	c.logouts.Add(1)
	go func() {
		defer c.logouts.Done()
		notifyErr := flows.RunLogoutNotify(detached, pair.RefreshToken, flows.LogoutDeps{
			Endpoint: c.endpoint(c.cfg.Paths.Logout),
			Device:   c.cfg.Device,
			Timeout:  c.cfg.Logout.NotifyTimeout,
			Do:       c.http.Do,
		})
		if notifyErr != nil {
			notifyErr = statusError(notifyErr)
			c.metrics.Inc(MetricLogoutNotifyFailure)
			c.logger.Warn("logout notification failed", zap.Error(notifyErr))
			c.emitAudit(detached, auditEventLogoutNotifyFail, false, subject, notifyErr, nil)
		}
	}()
	return err
}

// RealtimeEndpoint resolves a real-time hub path against the base URL. An
// empty path selects Paths.Realtime. Connect with a token from TokenSource.
func (c *Client) RealtimeEndpoint(path string) (*url.URL, error) {
	if path == "" {
		path = c.cfg.Paths.Realtime
	}
	if path == "" {
		return nil, errors.New("no realtime path configured")
	}
	return c.resolve(path)
}

// TokenSource exposes the stored credentials to oauth2-aware code. It never
// refreshes; a 401 seen elsewhere should be routed through Execute or
// Refresh.
func (c *Client) TokenSource() oauth2.TokenSource {
	return storeTokenSource{c: c}
}

type storeTokenSource struct {
	c *Client
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	pair := s.c.store.Get()
	if pair.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	tok := &oauth2.Token{
		AccessToken:  pair.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: pair.RefreshToken,
	}
	if principal := s.c.state.CurrentStatus().Principal; principal != nil {
		tok.Expiry = principal.ExpiresAt
	}
	return tok, nil
}
