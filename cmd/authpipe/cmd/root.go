package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/MrEthical07/authpipe"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const envPrefix = "AUTHPIPE"

var (
	serverURL      string
	storeBackend   string
	credentialPath string
	redisAddr      string
	logLevel       string
	nonInteractive bool
)

var rootCmd = &cobra.Command{
	Use:   "authpipe",
	Short: "authpipe - authenticated HTTP client",
	Long: `authpipe logs in to an API, keeps the credential pair on disk and sends
authenticated requests, refreshing the access token when the server answers 401.

Settings come from AUTHPIPE_* environment variables (or a .env file) and
can be overridden with flags.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("AUTHPIPE_NON_INTERACTIVE") == "1" {
			nonInteractive = true
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL (AUTHPIPE_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "credential store: file, memory, redis or sqlite (AUTHPIPE_STORE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&credentialPath, "credentials", "", "credential file or sqlite database path")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "redis address for the redis store")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Disable interactive prompts (also set via AUTHPIPE_NON_INTERACTIVE=1)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(benchCmd)
}

// loadConfig reads the environment, then applies flags. The CLI persists
// credentials to a file unless told otherwise.
func loadConfig() (authpipe.Config, error) {
	base := authpipe.DefaultConfig()
	base.Store.Backend = "file"
	base.Device = "authpipe-cli"
	base.Log.Level = "warn"

	cfg, err := authpipe.ConfigFromEnv(envPrefix, base)
	if err != nil {
		return authpipe.Config{}, err
	}
	if serverURL != "" {
		cfg.BaseURL = serverURL
	}
	if storeBackend != "" {
		cfg.Store.Backend = storeBackend
	}
	if credentialPath != "" {
		cfg.Store.FilePath = credentialPath
		cfg.Store.SQLitePath = credentialPath
	}
	if redisAddr != "" {
		cfg.Store.RedisAddr = redisAddr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if cfg.BaseURL == "" {
		return authpipe.Config{}, fmt.Errorf("no server configured: pass --server or set %s_BASE_URL", envPrefix)
	}
	return cfg, nil
}

func newClient(ctx context.Context) (*authpipe.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := authpipe.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	client, err := authpipe.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithSessionEndedHook(func(cause error) {
			logger.Debug("session ended", zap.Error(cause))
			pterm.Warning.Println("Session ended. Run 'authpipe login' to sign in again.")
		}).
		Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}
