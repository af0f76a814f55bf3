package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/academia"
	"github.com/goliatone/academia/blob"
	"github.com/goliatone/academia/config"
	"github.com/goliatone/academia/identity"
	"github.com/goliatone/academia/social"
	"github.com/goliatone/academia/social/providers/github"
	"github.com/goliatone/academia/social/providers/google"
	"github.com/goliatone/academia/web"
	"github.com/spf13/cobra"
)

// federatedStateTTL bounds how long a provider redirect may take.
const federatedStateTTL = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the academia HTTP server.

Migrations are applied before the listener starts. The server shuts down
gracefully on SIGINT or SIGTERM.

Examples:
  # Start with academia.yaml from the working directory
  academia serve

  # Start with a specific config file
  academia --config /etc/academia/academia.yaml serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTracing, err := setupTracing(ctx, cfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	a, err := openAppWith(ctx, cfg, os.Stderr, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sink := academia.LoggingActivitySink(a.logs.GetLogger("academia.activity"))

	authenticator, closeVerifiers, err := newSocialAuthenticator(cfg, a.logs)
	if err != nil {
		return err
	}
	defer closeVerifiers()

	idOpts := []identity.Option{}
	webOpts := []web.Option{
		web.WithLoggerProvider(a.logs),
		web.WithActivitySink(sink),
	}
	if authenticator != nil {
		idOpts = append(idOpts, identity.WithSocialAuthenticator(authenticator))
		webOpts = append(webOpts, web.WithSocialAuthenticator(authenticator))
	}

	backend, err := a.identity(idOpts...)
	if err != nil {
		return err
	}

	blobs, err := blob.NewDiskStore(cfg.Storage.Dir, cfg.Storage.PublicPrefix,
		blob.WithMaxSize(cfg.Storage.MaxSize),
		blob.WithLogger(a.logs.GetLogger("academia.blob")),
	)
	if err != nil {
		return err
	}

	a.logger.Info("starting academia", "addr", cfg.Server.Addr, "version", Version)
	if err := web.New(cfg, a.docs, backend, blobs, webOpts...).Listen(ctx); err != nil {
		return err
	}
	a.logger.Info("academia stopped")
	return nil
}

// newSocialAuthenticator registers the enabled federated providers. It
// returns nil when none is enabled.
func newSocialAuthenticator(cfg *config.Config, logs academia.LoggerProvider) (*social.Authenticator, func(), error) {
	closeAll := func() {}
	if !cfg.FederatedEnabled() {
		return nil, closeAll, nil
	}

	logger := logs.GetLogger("academia.social")
	opts := []social.Option{
		social.WithLogger(logger),
		social.WithDefaultRedirect(cfg.Auth.RejectedRouteDefault),
	}

	if cfg.Google.Enabled {
		opts = append(opts, social.WithProvider(google.New(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.CallbackURL,
		})))

		if cfg.Google.VerifyIDToken {
			verifier, err := social.NewJWKSVerifier("google", cfg.Google.JWKSURL, cfg.Google.ClientID, logger,
				social.WithIssuers("https://accounts.google.com", "accounts.google.com"),
			)
			if err != nil {
				return nil, closeAll, err
			}
			closeAll = verifier.Close
			opts = append(opts, social.WithIDTokenVerifier("google", verifier))
		}
	}

	if cfg.GitHub.Enabled {
		opts = append(opts, social.WithProvider(github.New(github.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			CallbackURL:  cfg.GitHub.CallbackURL,
		})))
	}

	state, err := social.NewEncryptedStateManager(
		[]byte(cfg.Auth.StateEncryptionKey),
		[]byte(cfg.Auth.StateHMACKey),
		federatedStateTTL,
	)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return social.NewAuthenticator(state, opts...), closeAll, nil
}
