package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/welcomehq/welcomeagent/internal/config"
	"github.com/welcomehq/welcomeagent/internal/rate"
	"github.com/welcomehq/welcomeagent/internal/runtime"
	"github.com/welcomehq/welcomeagent/internal/send"
	"github.com/welcomehq/welcomeagent/internal/status"
	"github.com/welcomehq/welcomeagent/internal/store"
)

type sendConfig struct {
	configPath string
	connection string
	to         string
	subject    string
	body       string
	bodyFile   string
	test       bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("welcomeagent-send failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() sendConfig {
	configPath := flag.String("config", "", "path to config file (optional)")
	connection := flag.String("connection", "", "gmail connection id")
	to := flag.String("to", "", "recipient address")
	subject := flag.String("subject", "", "email subject")
	body := flag.String("body", "", "HTML body")
	bodyFile := flag.String("body-file", "", "read HTML body from file")
	test := flag.Bool("test", false, "test send; does not consume quota")
	flag.Parse()

	return sendConfig{
		configPath: *configPath,
		connection: *connection,
		to:         *to,
		subject:    *subject,
		body:       *body,
		bodyFile:   *bodyFile,
		test:       *test,
	}
}

func run(sc sendConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if sc.connection == "" || sc.to == "" || sc.subject == "" {
		return errors.New("-connection, -to and -subject are required")
	}
	body := sc.body
	if sc.bodyFile != "" {
		raw, err := os.ReadFile(sc.bodyFile)
		if err != nil {
			return fmt.Errorf("read body file: %w", err)
		}
		body = string(raw)
	}
	if body == "" {
		return errors.New("an HTML body is required (-body or -body-file)")
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
	limiter := rate.NewWindowLimiter(cfg.RateLimitMaxRequests,
		time.Duration(cfg.RateLimitWindowMinutes)*time.Minute)
	resolver := status.NewResolver(st, google, google, logger)
	sender := send.NewSender(limiter, resolver, st, google, logger)

	result := sender.Send(ctx, send.Request{
		ConnectionID: sc.connection,
		To:           sc.to,
		Subject:      sc.subject,
		Body:         body,
		Test:         sc.test,
	})
	if !result.Success {
		return fmt.Errorf("send failed: %s", result.Error)
	}
	fmt.Println("sent")
	return nil
}
