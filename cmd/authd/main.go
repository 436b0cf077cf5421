// Command authd runs the OAuth 2.0 authorization server over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cobaltlab/authd"
	"github.com/cobaltlab/authd/instrumentation"
	"github.com/cobaltlab/authd/registry"
	"github.com/cobaltlab/authd/security"
	"github.com/cobaltlab/authd/server"
	"github.com/cobaltlab/authd/storage/memory"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	listenAddr        string
	configPath        string
	issuer            string
	logLevel          string
	trustProxy        bool
	trustedProxyCount int
	auditDisabled     bool
	codeTTL           int64
	tokenTTL          int64
	sessionTTL        int64
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "authd",
		Short:         "authd serves the OAuth 2.0 authorization code grant with token introspection",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.listenAddr, "listen", "l", ":8080", "address to listen on")
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML client and user registry (built-in registry when empty)")
	flags.StringVar(&opts.issuer, "issuer", "http://localhost:8080", "issuer URL advertised in security headers")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.trustProxy, "trust-proxy", false, "trust X-Forwarded-For from upstream proxies")
	flags.IntVar(&opts.trustedProxyCount, "trusted-proxy-count", 1, "number of trusted proxies in front of the server")
	flags.BoolVar(&opts.auditDisabled, "audit-disabled", false, "disable security audit logging")
	flags.Int64Var(&opts.codeTTL, "code-ttl", 600, "authorization code lifetime in seconds")
	flags.Int64Var(&opts.tokenTTL, "token-ttl", 3600, "access token lifetime in seconds")
	flags.Int64Var(&opts.sessionTTL, "session-ttl", 600, "pending login session lifetime in seconds")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	logger := newLogger(opts.logLevel)
	slog.SetDefault(logger)

	reg, dir, err := loadRegistry(opts.configPath)
	if err != nil {
		return err
	}
	logger.Info("Client registry loaded", "clients", reg.Len())

	store := memory.New()
	defer store.Stop()
	store.SetLogger(logger)

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName: "authd",
		Enabled:     true,
	})
	if err != nil {
		return fmt.Errorf("initializing instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = inst.Shutdown(shutdownCtx)
	}()
	store.SetInstrumentation(inst)

	cfg := &server.Config{
		Issuer:               opts.issuer,
		AuthorizationCodeTTL: opts.codeTTL,
		AccessTokenTTL:       opts.tokenTTL,
		SessionTTL:           opts.sessionTTL,
		TrustProxy:           opts.trustProxy,
		TrustedProxyCount:    opts.trustedProxyCount,
		AuditDisabled:        opts.auditDisabled,
	}

	srv, err := server.New(reg, dir, store, store, store, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}
	srv.SetInstrumentation(inst)

	limiter := security.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst, logger)
	defer limiter.Stop()
	srv.SetLoginRateLimiter(limiter)

	handler := authd.NewHandler(srv, logger)

	httpSrv := &http.Server{
		Addr:              opts.listenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}()

	logger.Info("Authorization server listening", "addr", opts.listenAddr, "issuer", opts.issuer)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("Authorization server stopped")
	return nil
}

func loadRegistry(path string) (*registry.Registry, *registry.Directory, error) {
	if path == "" {
		reg, dir := registry.Default()
		return reg, dir, nil
	}
	reg, dir, err := registry.LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading registry from %s: %w", path, err)
	}
	return reg, dir, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
