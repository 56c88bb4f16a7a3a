package authpipe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authpipe/internal/audit"
	"github.com/MrEthical07/authpipe/internal/flows"
	"github.com/MrEthical07/authpipe/refresh"
	"github.com/MrEthical07/authpipe/session"
	"github.com/MrEthical07/authpipe/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Client sends authenticated requests, refreshing credentials once on a 401
// and ending the session when they cannot be refreshed. It is safe for
// concurrent use.
type Client struct {
	cfg    Config
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
	hook   SessionEndedHook

	store       *tokenstore.Store
	state       *session.State
	coordinator *refresh.Coordinator
	metrics     *Metrics
	audit       *audit.Dispatcher

	// endMu guards the once-per-session signal. endedGen is the store
	// generation whose session has already ended.
	endMu      sync.Mutex
	endedValid bool
	endedGen   uint64

	// life guards closed against logouts racing Close.
	life      sync.RWMutex
	closed    bool
	logouts   sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
	owned     []func() error
}

// Execute sends the request produced by build with the current access token.
//
// A non-401 response is returned as is, whatever its status. On a 401 the
// credentials are refreshed through the shared coordinator and the request is
// rebuilt and sent once more; that second response is returned even if it
// is another 401. When the refresh fails the session ends and the error
// matches ErrSessionEnded, wrapping the cause. If ctx ends first its error
// is returned unwrapped and the stored credentials are left alone.
func (c *Client) Execute(ctx context.Context, build RequestBuilder) (*http.Response, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	if build == nil {
		return nil, errors.New("nil request builder")
	}

	c.metrics.Inc(MetricRequestTotal)
	start := time.Now()
	res := flows.RunExecute(ctx, build, flows.ExecuteDeps{
		AccessToken:                  c.accessToken,
		Attach:                       attachBearer,
		Do:                           c.http.Do,
		Refresh:                      c.coordinator.Refresh,
		EndSession:                   c.endSessionFor,
		EndSessionOnTransportFailure: c.cfg.Refresh.EndSessionOnTransportFailure,
		OnUnauthorized:               func() { c.metrics.Inc(MetricRequestUnauthorized) },
		OnRetry:                      func() { c.metrics.Inc(MetricRequestRetried) },
	})
	c.metrics.ObserveLatency(time.Since(start))

	switch res.Failure {
	case flows.ExecuteFailureNone:
		return res.Response, nil
	case flows.ExecuteFailureCancelled:
		c.metrics.Inc(MetricRequestCancelled)
		return nil, res.Err
	case flows.ExecuteFailureSessionEnded:
		return nil, fmt.Errorf("%w: %w", ErrSessionEnded, res.Err)
	case flows.ExecuteFailureRefreshUnavailable:
		return nil, fmt.Errorf("%w: %w", ErrRefreshUnavailable, res.Err)
	case flows.ExecuteFailureTransport:
		c.metrics.Inc(MetricRequestTransportError)
		return nil, res.Err
	default:
		return nil, res.Err
	}
}

// Do sends req through Execute. A request with a body must have GetBody set,
// as http.NewRequest does for in-memory bodies, so that it can be re-sent.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed: GetBody is nil")
	}
	return c.Execute(req.Context(), func(ctx context.Context) (*http.Request, error) {
		clone := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clone.Body = body
		}
		return clone, nil
	})
}

// Status derives the session status from the stored access token.
func (c *Client) Status() SessionStatus {
	return c.state.CurrentStatus()
}

// Subscribe registers obs for every credential change. Observers run on the
// goroutine that changed the credentials and must not block.
func (c *Client) Subscribe(obs Observer) *session.Subscription {
	return c.state.Subscribe(obs)
}

// Tokens returns the stored pair.
func (c *Client) Tokens() TokenPair {
	return c.store.Get()
}

// RefreshState reports whether a refresh call is in flight.
func (c *Client) RefreshState() refresh.State {
	return c.coordinator.State()
}

// MetricsSnapshot copies the client counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports audit events lost to a full buffer.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close waits for pending logout notifications, flushes audit events and
// closes backends the client opened itself. Later calls return the first
// result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.life.Lock()
		c.closed = true
		c.life.Unlock()

		c.logouts.Wait()
		c.audit.Close()
		c.closeErr = c.closeOwned()
	})
	return c.closeErr
}

func (c *Client) isClosed() bool {
	c.life.RLock()
	defer c.life.RUnlock()
	return c.closed
}

func (c *Client) closeOwned() error {
	var errs []error
	for _, closeFn := range c.owned {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.owned = nil
	return errors.Join(errs...)
}

func (c *Client) accessToken() string {
	return c.store.Get().AccessToken
}

func attachBearer(req *http.Request, accessToken string) {
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
}

// resolve parses path relative to the base URL. Leading slashes are dropped
// so that a base path prefix is kept.
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	return c.base.ResolveReference(ref), nil
}

// endpoint resolves one of the configured auth paths, checked by Build.
func (c *Client) endpoint(path string) string {
	u, err := c.resolve(path)
	if err != nil {
		return ""
	}
	return u.String()
}

func (c *Client) endSessionFor(ctx context.Context, failedAccess string, outcome refresh.Outcome) {
	c.endSession(ctx, failedAccess, outcome.Err)
}

// endSession clears the credentials and fires the hook at most once per
// stored session. A session replaced since failedAccess was rejected is
// left alone.
func (c *Client) endSession(ctx context.Context, failedAccess string, cause error) {
	c.endMu.Lock()
	current := c.store.Get()
	if current.AccessToken != "" && current.AccessToken != failedAccess {
		c.endMu.Unlock()
		return
	}
	gen := c.store.Generation()
	if c.endedValid && c.endedGen == gen {
		c.endMu.Unlock()
		return
	}
	c.endedValid = true
	c.endedGen = gen

	subject := c.currentSubject()
	if !current.IsEmpty() {
		cleared, err := c.store.ClearIf(ctx, current.AccessToken)
		if err != nil {
			c.logger.Warn("clearing ended session failed", zap.Error(err))
		}
		if !cleared {
			// a login replaced the session after the check above
			c.endMu.Unlock()
			return
		}
	}
	c.endMu.Unlock()

	c.metrics.Inc(MetricSessionEnded)
	c.logger.Info("session ended", zap.Error(cause))
	c.emitAudit(ctx, auditEventSessionEnded, false, subject, cause, nil)

	if c.hook != nil {
		c.hook(cause)
	}
}

// markEnded records the current session as ended without signalling.
func (c *Client) markEnded() {
	c.endMu.Lock()
	c.endedValid = true
	c.endedGen = c.store.Generation()
	c.endMu.Unlock()
}

// refreshObserver feeds coordinator lifecycle into metrics, audit and logs.
type refreshObserver struct {
	c *Client
}

func (o refreshObserver) RefreshStarted() {
	o.c.metrics.Inc(MetricRefreshLeader)
	o.c.logger.Debug("refresh started")
}

func (o refreshObserver) RefreshJoined(refresh.Outcome) {
	o.c.metrics.Inc(MetricRefreshJoined)
}

func (o refreshObserver) RefreshFinished(outcome refresh.Outcome) {
	c := o.c
	ctx := context.Background()
	switch outcome.Kind {
	case refresh.Success:
		c.metrics.Inc(MetricRefreshSuccess)
		c.logger.Debug("refresh succeeded")
		c.emitAudit(ctx, auditEventRefreshSuccess, true, c.currentSubject(), nil, nil)
	case refresh.Denied:
		c.metrics.Inc(MetricRefreshDenied)
		c.logger.Info("refresh denied", zap.Error(outcome.Err))
		c.emitAudit(ctx, auditEventRefreshDenied, false, "", outcome.Err, nil)
	default:
		c.metrics.Inc(MetricRefreshTransportFailure)
		if errors.Is(outcome.Err, refresh.ErrThrottled) {
			c.metrics.Inc(MetricRefreshThrottled)
		}
		c.logger.Warn("refresh failed", zap.Error(outcome.Err))
		c.emitAudit(ctx, auditEventRefreshFailure, false, c.currentSubject(), outcome.Err, nil)
	}
}
