package authpipe

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the complete client configuration. Build it with DefaultConfig,
// override fields, then pass it to Builder.WithConfig, or load it from the
// environment with LoadConfig.
type Config struct {
	BaseURL        string        `envconfig:"BASE_URL" validate:"required,url"`
	Device         string        `envconfig:"DEVICE"`
	DeviceInfo     string        `envconfig:"DEVICE_INFO"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" validate:"gte=0"`

	Paths   PathsConfig
	Refresh RefreshConfig
	Logout  LogoutConfig
	Store   StoreConfig
	Parser  ParserConfig
	Audit   AuditConfig
	Metrics MetricsConfig
	Log     LogConfig
}

/*
====================================
PATHS CONFIG
====================================
*/

// PathsConfig holds the auth endpoints, relative to BaseURL.
type PathsConfig struct {
	Login   string `envconfig:"LOGIN" validate:"required"`
	Refresh string `envconfig:"REFRESH" validate:"required"`
	Logout  string `envconfig:"LOGOUT" validate:"required"`
	// Realtime is the default hub path for RealtimeEndpoint.
	Realtime string `envconfig:"REALTIME"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig bounds the coordinated refresh call.
type RefreshConfig struct {
	Timeout                time.Duration `envconfig:"TIMEOUT" validate:"gte=0"`
	MaxConsecutiveFailures uint32        `envconfig:"MAX_CONSECUTIVE_FAILURES"`
	BreakerCooldown        time.Duration `envconfig:"BREAKER_COOLDOWN" validate:"gte=0"`
	RateLimit              float64       `envconfig:"RATE_LIMIT" validate:"gte=0"`
	Burst                  int           `envconfig:"BURST" validate:"gte=0"`
	// EndSessionOnTransportFailure ends the session when the refresh endpoint
	// cannot be reached. When false the request fails with
	// ErrRefreshUnavailable and the credentials are kept.
	EndSessionOnTransportFailure bool `envconfig:"END_SESSION_ON_TRANSPORT_FAILURE"`
}

/*
====================================
LOGOUT CONFIG
====================================
*/

// LogoutConfig bounds the detached logout notification.
type LogoutConfig struct {
	NotifyTimeout time.Duration `envconfig:"NOTIFY_TIMEOUT" validate:"gte=0"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig selects the credential backend.
type StoreConfig struct {
	Backend    string `envconfig:"BACKEND" validate:"oneof=memory file redis sqlite"`
	FilePath   string `envconfig:"FILE_PATH"`
	RedisAddr  string `envconfig:"REDIS_ADDR"`
	RedisDB    int    `envconfig:"REDIS_DB" validate:"gte=0"`
	KeyPrefix  string `envconfig:"KEY_PREFIX"`
	SQLitePath string `envconfig:"SQLITE_PATH"`
	AccessKey  string `envconfig:"ACCESS_KEY" validate:"required"`
	RefreshKey string `envconfig:"REFRESH_KEY" validate:"required,nefield=AccessKey"`
}

/*
====================================
PARSER CONFIG
====================================
*/

// ParserConfig controls access-token decoding. Without VerifyMethod tokens
// are decoded unverified.
type ParserConfig struct {
	// Leeway absorbs clock skew on nbf and iat. It never extends expiry.
	Leeway       time.Duration `envconfig:"LEEWAY" validate:"gte=0,lte=2m"`
	VerifyMethod string        `envconfig:"VERIFY_METHOD" validate:"omitempty,oneof=hs256 ed25519"`
	// VerifyKey is the HS256 secret or the Ed25519 public key (PEM or raw).
	VerifyKey string `envconfig:"VERIFY_KEY"`
	Issuer    string `envconfig:"ISSUER"`
	Audience  string `envconfig:"AUDIENCE"`
	CacheSize int    `envconfig:"CACHE_SIZE" validate:"gte=0"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `envconfig:"ENABLED"`
	BufferSize int  `envconfig:"BUFFER_SIZE" validate:"gte=0"`
	DropIfFull bool `envconfig:"DROP_IF_FULL"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `envconfig:"ENABLED"`
	EnableLatencyHistograms bool `envconfig:"ENABLE_LATENCY_HISTOGRAMS"`
}

/*
====================================
LOG CONFIG
====================================
*/

// LogConfig is used by NewLogger.
type LogConfig struct {
	Level  string `envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `envconfig:"FORMAT" validate:"oneof=console json"`
}

// DefaultConfig returns the configuration used when a field is not set.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		Paths: PathsConfig{
			Login:    "api/auth/login",
			Refresh:  "api/auth/refresh",
			Logout:   "api/auth/logout",
			Realtime: "hubs/notifications",
		},
		Refresh: RefreshConfig{
			Timeout:                      15 * time.Second,
			MaxConsecutiveFailures:       5,
			BreakerCooldown:              30 * time.Second,
			RateLimit:                    2,
			Burst:                        4,
			EndSessionOnTransportFailure: true,
		},
		Logout: LogoutConfig{
			NotifyTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend:    "memory",
			KeyPrefix:  "authpipe:",
			AccessKey:  "AccessToken",
			RefreshKey: "RefreshToken",
		},
		Parser: ParserConfig{
			CacheSize: 128,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultCredentialsPath is where the file backend stores credentials when
// Store.FilePath is empty.
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".authpipe", "credentials.json")
	}
	return filepath.Join(home, ".authpipe", "credentials.json")
}

// LoadConfig starts from DefaultConfig, applies an optional .env file and
// then the environment, and validates the result. Variables are named
// PREFIX_FIELD, with nested sections as PREFIX_SECTION_FIELD (for example
// AUTHPIPE_REFRESH_TIMEOUT).
func LoadConfig(prefix string) (Config, error) {
	cfg, err := ConfigFromEnv(prefix, DefaultConfig())
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigFromEnv overlays the optional .env file and the environment on base
// without validating, so callers can apply flags afterwards.
func ConfigFromEnv(prefix string, base Config) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := base
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process config from environment: %w", err)
	}
	return cfg, nil
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, then cross-field rules.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid config: BaseURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("invalid config: BaseURL scheme must be http or https")
	}

	// Store. A redis backend without RedisAddr is checked by Build, since
	// Builder.WithRedis can supply the client.
	if c.Store.Backend == "sqlite" && c.Store.SQLitePath == "" {
		return errors.New("invalid config: sqlite backend requires Store.SQLitePath")
	}

	// Parser
	if c.Parser.VerifyMethod != "" && c.Parser.VerifyKey == "" {
		return errors.New("invalid config: Parser.VerifyMethod requires Parser.VerifyKey")
	}

	// Refresh
	if c.Refresh.MaxConsecutiveFailures > 0 && c.Refresh.BreakerCooldown <= 0 {
		return errors.New("invalid config: Refresh.BreakerCooldown must be > 0 when the breaker is enabled")
	}
	if c.Refresh.RateLimit > 0 && c.Refresh.Burst < 1 {
		return errors.New("invalid config: Refresh.Burst must be >= 1 when RateLimit is set")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("invalid config: latency histograms require metrics")
	}
	return nil
}
