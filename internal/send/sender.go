// Package send implements the rate-limited welcome email send path.
package send

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/welcomehq/welcomeagent/internal/gmail"
	"github.com/welcomehq/welcomeagent/internal/rate"
	"github.com/welcomehq/welcomeagent/internal/store"
)

// ErrRateLimited is the caller-visible admission failure string.
const ErrRateLimited = "Rate limit exceeded"

// StatusResolver is the verdict surface the sender needs.
type StatusResolver interface {
	Resolve(ctx context.Context, connectionID string) gmail.Status
}

// Request describes one outbound email. Test sends go through the full
// path but leave the owner's quota untouched.
type Request struct {
	ConnectionID string
	To           string
	Subject      string
	Body         string
	Test         bool
}

// Sender pushes one email through a Gmail connection, gated by the rate
// limiter and the connection's health verdict.
type Sender struct {
	Limiter  rate.Limiter
	Resolver StatusResolver
	Store    store.Store
	Mailer   gmail.Mailer
	Logger   *slog.Logger
	Clock    func() time.Time
}

// NewSender constructs a Sender with sane defaults.
func NewSender(limiter rate.Limiter, resolver StatusResolver, st store.Store, mailer gmail.Mailer, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Sender{
		Limiter:  limiter,
		Resolver: resolver,
		Store:    st,
		Mailer:   mailer,
		Logger:   logger,
		Clock:    time.Now,
	}
}

// Send delivers one email. Failures come back as a SendResult, never as
// an error; once the provider accepts the message there is no undo, so a
// failed quota decrement afterwards is logged and left as-is.
func (s *Sender) Send(ctx context.Context, req Request) gmail.SendResult {
	if !s.Limiter.TryAcquire(req.ConnectionID) {
		s.Logger.Warn("send rejected by rate limiter", "connection", req.ConnectionID)
		return gmail.SendResult{Success: false, Error: ErrRateLimited}
	}

	verdict := s.Resolver.Resolve(ctx, req.ConnectionID)
	if !verdict.IsActive {
		return gmail.SendResult{Success: false, Error: verdict.Error}
	}

	// Reload: the status check may have rotated the access token.
	conn, err := s.Store.GetConnection(ctx, req.ConnectionID)
	if err != nil {
		s.Logger.Error("reload connection failed", "connection", req.ConnectionID, "error", err)
		return gmail.SendResult{Success: false, Error: "Connection not found"}
	}

	raw := EncodeRaw(BuildMessage(conn, req.To, req.Subject, req.Body))
	if err := s.Mailer.SendRaw(ctx, conn.Tokens.AccessToken, raw); err != nil {
		s.Logger.Warn("gmail send failed",
			"connection", req.ConnectionID, "email", conn.Email, "error", err)
		return gmail.SendResult{Success: false, Error: err.Error()}
	}

	s.Logger.Info("email sent",
		"connection", req.ConnectionID, "to", req.To, "test", req.Test)

	if !req.Test {
		if err := s.Store.DecrementSends(ctx, conn.UserID); err != nil {
			// email already left; nothing to roll back
			s.Logger.Error("quota decrement failed after send",
				"user", conn.UserID, "connection", req.ConnectionID, "error", err)
		}
	}
	return gmail.SendResult{Success: true}
}

// BuildMessage assembles the RFC 2822 message: HTML body, CRLF line
// endings, the connection's display identity as From.
func BuildMessage(conn gmail.Connection, to, subject, body string) string {
	lines := []string{
		`Content-Type: text/html; charset="UTF-8"`,
		"MIME-Version: 1.0",
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("From: %q <%s>", conn.Name, conn.Email),
		fmt.Sprintf("Subject: %s", subject),
		"",
		body,
	}
	return strings.Join(lines, "\r\n")
}

// EncodeRaw produces the base64url form the send endpoint expects:
// standard base64 with +/ swapped for -_ and padding stripped.
func EncodeRaw(message string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(message))
}
