package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authpipe/tokenstore"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Refresher performs the refresh network call. It returns ErrDenied (possibly
// wrapped) when the server rejects refreshToken.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (tokenstore.TokenPair, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (tokenstore.TokenPair, error)

func (f RefresherFunc) RefreshTokens(ctx context.Context, refreshToken string) (tokenstore.TokenPair, error) {
	return f(ctx, refreshToken)
}

// TokenStore is the subset of tokenstore.Store the coordinator writes to.
type TokenStore interface {
	Get() tokenstore.TokenPair
	Set(ctx context.Context, pair tokenstore.TokenPair) error
	ClearIf(ctx context.Context, expectedAccess string) (bool, error)
}

// Observer receives refresh lifecycle events. Methods run on the leader's
// goroutine (RefreshStarted, RefreshFinished) or the follower's (RefreshJoined)
// and must not block.
type Observer interface {
	RefreshStarted()
	RefreshJoined(Outcome)
	RefreshFinished(Outcome)
}

type nopObserver struct{}

func (nopObserver) RefreshStarted()         {}
func (nopObserver) RefreshJoined(Outcome)   {}
func (nopObserver) RefreshFinished(Outcome) {}

// State is the coordinator state.
type State uint32

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// Config bounds the refresh call.
type Config struct {
	// Timeout bounds the leader's network call. Zero means no bound.
	Timeout time.Duration
	// MaxConsecutiveFailures opens the breaker after that many transport
	// failures in a row. Zero disables the breaker.
	MaxConsecutiveFailures uint32
	// BreakerCooldown is how long the breaker stays open.
	BreakerCooldown time.Duration
	// RateLimit caps leader network calls per second. Zero disables it.
	RateLimit float64
	Burst     int
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.obs = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

const flightKey = "refresh"

// Coordinator serializes refreshes so that at most one network call is in
// flight at any time.
type Coordinator struct {
	store     TokenStore
	refresher Refresher
	cfg       Config
	obs       Observer
	logger    *zap.Logger

	group   singleflight.Group
	state   atomic.Uint32
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// New returns an idle Coordinator.
func New(store TokenStore, refresher Refresher, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		refresher: refresher,
		cfg:       cfg,
		obs:       nopObserver{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.MaxConsecutiveFailures > 0 {
		cooldown := cfg.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		logger := c.logger
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "token-refresh",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.MaxConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("refresh breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
			IsSuccessful: func(err error) bool {
				// a denial proves the backend is reachable
				return err == nil || errors.Is(err, ErrDenied)
			},
		})
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// State reports whether a refresh is in flight.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Refresh obtains a fresh credential pair after failedAccess was rejected.
//
// If the store already holds a different access token, another caller has
// refreshed in the meantime and that pair is returned as Success without a
// network call. Otherwise the caller joins the in-flight refresh or leads a
// new one. The returned error is non-nil only when ctx ends first; the
// refresh itself keeps running.
func (c *Coordinator) Refresh(ctx context.Context, failedAccess string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if pair, ok := c.alreadyRefreshed(failedAccess); ok {
		return succeeded(pair), nil
	}

	var led bool
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		led = true
		return c.lead(detached, failedAccess), nil
	})

	select {
	case res := <-ch:
		outcome := res.Val.(Outcome)
		if !led {
			c.obs.RefreshJoined(outcome)
		}
		return outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (c *Coordinator) alreadyRefreshed(failedAccess string) (tokenstore.TokenPair, bool) {
	if failedAccess == "" {
		return tokenstore.TokenPair{}, false
	}
	pair := c.store.Get()
	if pair.AccessToken == "" || pair.AccessToken == failedAccess {
		return tokenstore.TokenPair{}, false
	}
	return pair, true
}

func (c *Coordinator) lead(ctx context.Context, failedAccess string) Outcome {
	c.state.Store(uint32(Refreshing))
	defer c.state.Store(uint32(Idle))

	c.obs.RefreshStarted()
	outcome := c.run(ctx, failedAccess)
	c.obs.RefreshFinished(outcome)
	return outcome
}

func (c *Coordinator) run(ctx context.Context, failedAccess string) Outcome {
	// the store may have changed between the caller's check and this flight
	if pair, ok := c.alreadyRefreshed(failedAccess); ok {
		return succeeded(pair)
	}

	current := c.store.Get()
	if current.RefreshToken == "" {
		c.clear(ctx, current.AccessToken)
		return denied(ErrNoRefreshToken)
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return transportFailure(ErrThrottled)
	}

	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	pair, err := c.call(callCtx, current.RefreshToken)
	switch {
	case err == nil:
	case errors.Is(err, ErrDenied):
		c.clear(ctx, current.AccessToken)
		return denied(err)
	default:
		return transportFailure(err)
	}

	if pair.AccessToken == "" {
		return transportFailure(ErrMalformedResponse)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = current.RefreshToken
	}
	if err := c.store.Set(ctx, pair); err != nil {
		// snapshot is updated even when persistence fails
		c.logger.Warn("refreshed credentials not persisted", zap.Error(err))
	}
	return succeeded(pair)
}

func (c *Coordinator) call(ctx context.Context, refreshToken string) (tokenstore.TokenPair, error) {
	if c.breaker == nil {
		return c.refresher.RefreshTokens(ctx, refreshToken)
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.refresher.RefreshTokens(ctx, refreshToken)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return tokenstore.TokenPair{}, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	if err != nil {
		return tokenstore.TokenPair{}, err
	}
	return v.(tokenstore.TokenPair), nil
}

// clear drops the rejected session unless a new pair replaced it while the
// refresh call was in flight.
func (c *Coordinator) clear(ctx context.Context, rejectedAccess string) {
	cleared, err := c.store.ClearIf(ctx, rejectedAccess)
	if err != nil {
		c.logger.Warn("clearing rejected credentials failed", zap.Error(err))
	}
	if !cleared {
		c.logger.Debug("credentials replaced during refresh, keeping them")
	}
}
