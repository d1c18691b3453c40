package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/welcomehq/welcomeagent/internal/config"
	"github.com/welcomehq/welcomeagent/internal/runtime"
	"github.com/welcomehq/welcomeagent/internal/status"
	"github.com/welcomehq/welcomeagent/internal/store"
)

type statusConfig struct {
	configPath string
	connection string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("welcomeagent-status failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() statusConfig {
	configPath := flag.String("config", "", "path to config file (optional)")
	connection := flag.String("connection", "", "gmail connection id")
	flag.Parse()
	return statusConfig{configPath: *configPath, connection: *connection}
}

func run(sc statusConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if sc.connection == "" {
		return errors.New("-connection is required")
	}

	logger := runtime.DefaultLogger()
	cfg, err := config.Load(sc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	google := runtime.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
	resolver := status.NewResolver(st, google, google, logger)

	verdict := resolver.Resolve(ctx, sc.connection)
	if verdict.IsActive {
		fmt.Printf("%s: active (checked %s)\n", sc.connection, verdict.LastChecked.Format("2006-01-02 15:04:05"))
		return nil
	}
	fmt.Printf("%s: inactive: %s\n", sc.connection, verdict.Error)
	return nil
}
