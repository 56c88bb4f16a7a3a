package authpipe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/authpipe/internal/audit"
	"github.com/MrEthical07/authpipe/internal/flows"
	"github.com/MrEthical07/authpipe/jwt"
	"github.com/MrEthical07/authpipe/middleware"
	"github.com/MrEthical07/authpipe/refresh"
	"github.com/MrEthical07/authpipe/session"
	"github.com/MrEthical07/authpipe/tokenstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a Client. Configure it once, call Build, and discard it.
type Builder struct {
	config Config

	httpClient *http.Client
	kv         tokenstore.KeyValue
	redis      redis.UniversalClient
	parser     session.CredentialParser
	logger     *zap.Logger
	auditSink  AuditSink
	hook       SessionEndedHook

	built bool
}

// New returns a Builder holding DefaultConfig. BaseURL must still be set.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(base string) *Builder {
	b.config.BaseURL = base
	return b
}

// WithHTTPClient sets the client used for every call. Its transport is
// wrapped with the request-ID and device round-trippers; the caller's
// client is not modified.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithKeyValue persists credentials in kv and ignores Store.Backend.
func (b *Builder) WithKeyValue(kv tokenstore.KeyValue) *Builder {
	b.kv = kv
	return b
}

// WithRedis selects the redis backend using an existing client. The client
// is not closed by Client.Close.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	b.config.Store.Backend = "redis"
	return b
}

// WithCredentialParser replaces the JWT parser built from Config.Parser.
func (b *Builder) WithCredentialParser(p session.CredentialParser) *Builder {
	b.parser = p
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink enables auditing into sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithSessionEndedHook registers the session-ended signal.
func (b *Builder) WithSessionEndedHook(hook SessionEndedHook) *Builder {
	b.hook = hook
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, opens the credential backend, loads
// any persisted pair and returns a ready Client. ctx bounds only the
// startup I/O.
func (b *Builder) Build(ctx context.Context) (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid config: BaseURL: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:     cfg,
		base:    base,
		logger:  logger,
		hook:    b.hook,
		metrics: NewMetrics(cfg.Metrics),
	}

	for _, path := range []string{cfg.Paths.Login, cfg.Paths.Refresh, cfg.Paths.Logout} {
		if _, err := c.resolve(path); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	kv, err := b.openBackend(ctx, c)
	if err != nil {
		c.closeOwned()
		return nil, err
	}

	c.store, err = tokenstore.Open(ctx, kv, tokenstore.WithKeys(cfg.Store.AccessKey, cfg.Store.RefreshKey))
	if err != nil {
		c.closeOwned()
		return nil, fmt.Errorf("load stored credentials: %w", err)
	}

	parser := b.parser
	if parser == nil {
		if parser, err = newCredentialParser(cfg.Parser); err != nil {
			c.closeOwned()
			return nil, err
		}
	}
	c.state = session.NewState(c.store, parser)
	c.store.Attach(c.state)

	if cfg.Audit.Enabled {
		c.audit = audit.NewDispatcher(audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}

	c.http = wrapHTTPClient(b.httpClient, cfg)

	refresher := refresh.RefresherFunc(func(ctx context.Context, refreshToken string) (tokenstore.TokenPair, error) {
		return flows.RunRefreshCall(ctx, refreshToken, flows.RefreshCallDeps{
			Endpoint: c.endpoint(cfg.Paths.Refresh),
			Device:   cfg.Device,
			Do:       c.http.Do,
		})
	})
	c.coordinator = refresh.New(meteredStore{Store: c.store, metrics: c.metrics}, refresher, refresh.Config{
		Timeout:                cfg.Refresh.Timeout,
		MaxConsecutiveFailures: cfg.Refresh.MaxConsecutiveFailures,
		BreakerCooldown:        cfg.Refresh.BreakerCooldown,
		RateLimit:              cfg.Refresh.RateLimit,
		Burst:                  cfg.Refresh.Burst,
	},
		refresh.WithObserver(refreshObserver{c: c}),
		refresh.WithLogger(logger.Named("refresh")),
	)

	b.built = true
	logger.Debug("client built",
		zap.String("base_url", base.String()),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Bool("authenticated", c.state.CurrentStatus().IsAuthenticated()),
	)
	return c, nil
}

func (b *Builder) openBackend(ctx context.Context, c *Client) (tokenstore.KeyValue, error) {
	if b.kv != nil {
		return b.kv, nil
	}

	cfg := b.config.Store
	switch cfg.Backend {
	case "", "memory":
		return tokenstore.NewMemoryKV(), nil
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = DefaultCredentialsPath()
		}
		return tokenstore.NewFileKV(path), nil
	case "redis":
		rdb := b.redis
		if rdb == nil {
			if cfg.RedisAddr == "" {
				return nil, errors.New("invalid config: redis backend requires Store.RedisAddr or Builder.WithRedis")
			}
			owned := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
			c.owned = append(c.owned, owned.Close)
			rdb = owned
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("%w: redis ping: %w", tokenstore.ErrBackendUnavailable, err)
		}
		return tokenstore.NewRedisKV(rdb, cfg.KeyPrefix), nil
	case "sqlite":
		kv, err := tokenstore.OpenSQLiteKV(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.owned = append(c.owned, kv.Close)
		return kv, nil
	default:
		return nil, fmt.Errorf("invalid config: unknown store backend %q", cfg.Backend)
	}
}

func newCredentialParser(cfg ParserConfig) (session.CredentialParser, error) {
	p, err := jwt.NewParser(jwt.Config{
		VerifyMethod: jwt.SigningMethod(cfg.VerifyMethod),
		VerifyKey:    []byte(cfg.VerifyKey),
		Issuer:       cfg.Issuer,
		Audience:     cfg.Audience,
		Leeway:       cfg.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("credential parser: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return p, nil
	}
	return jwt.NewCachingParser(p, cfg.CacheSize)
}

func wrapHTTPClient(base *http.Client, cfg Config) *http.Client {
	var hc http.Client
	if base != nil {
		hc = *base
	}
	if hc.Timeout == 0 {
		hc.Timeout = cfg.RequestTimeout
	}
	transport := hc.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	hc.Transport = middleware.Chain(transport, middleware.RequestID(), middleware.Device(cfg.Device))
	return &hc
}

// meteredStore counts refreshed pairs that could not be persisted.
type meteredStore struct {
	*tokenstore.Store
	metrics *Metrics
}

func (s meteredStore) Set(ctx context.Context, pair tokenstore.TokenPair) error {
	err := s.Store.Set(ctx, pair)
	var storeErr *tokenstore.StoreError
	if errors.As(err, &storeErr) {
		s.metrics.Inc(MetricStorePersistFailure)
	}
	return err
}
