package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/welcomehq/welcomeagent/internal/api"
	"github.com/welcomehq/welcomeagent/internal/config"
	"github.com/welcomehq/welcomeagent/internal/rate"
	"github.com/welcomehq/welcomeagent/internal/runtime"
	"github.com/welcomehq/welcomeagent/internal/send"
	"github.com/welcomehq/welcomeagent/internal/status"
	"github.com/welcomehq/welcomeagent/internal/store"
)

const shutdownGrace = 10 * time.Second

type serverConfig struct {
	configPath string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("welcomeagentd failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() serverConfig {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()
	return serverConfig{configPath: *configPath}
}

func run(sc serverConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	cfg, err := config.Load(sc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return errors.New("google oauth client id/secret not configured")
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	google := runtime.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
	limiter := rate.NewWindowLimiter(cfg.RateLimitMaxRequests,
		time.Duration(cfg.RateLimitWindowMinutes)*time.Minute)
	resolver := status.NewResolver(st, google, google, logger)
	sender := send.NewSender(limiter, resolver, st, google, logger)

	router := api.SetupRouter(&api.API{
		Store:            st,
		Sender:           sender,
		Status:           resolver,
		Connector:        google,
		Logger:           logger,
		DefaultSendQuota: cfg.DefaultSendQuota,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
