// Package status decides whether a Gmail connection may be used to send,
// refreshing expired tokens along the way and persisting what it learns.
package status

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/welcomehq/welcomeagent/internal/gmail"
	"github.com/welcomehq/welcomeagent/internal/store"
)

// Verdict error strings surfaced to callers and persisted in last_error.
const (
	ErrConnectionNotFound = "Connection not found"
	ErrRefreshFailed      = "Failed to refresh tokens"
	ErrInvalidTokens      = "Invalid tokens"
)

// State is one step of the status check. Classification is pure; only
// Refreshing and Validating carry side effects.
type State int

const (
	StateUnknown State = iota
	StateExpired
	StateRefreshing
	StateValidating
	StateActive
	StateInactive
)

func (s State) String() string {
	switch s {
	case StateExpired:
		return "expired"
	case StateRefreshing:
		return "refreshing"
	case StateValidating:
		return "validating"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Classify maps a loaded connection to its first actionable state.
// A stored inactive flag wins outright: re-activation requires an
// explicit re-authorization flow, never an automatic retry here.
func Classify(conn gmail.Connection, now time.Time) State {
	if !conn.IsActive {
		return StateInactive
	}
	if conn.Tokens.Expired(now) {
		return StateExpired
	}
	return StateValidating
}

// Resolver produces the active/inactive verdict for a connection.
type Resolver struct {
	Store     store.Store
	Exchanger gmail.TokenExchanger
	Checker   gmail.IdentityChecker
	Logger    *slog.Logger
	Clock     func() time.Time
}

// NewResolver constructs a Resolver with sane defaults.
func NewResolver(st store.Store, exchanger gmail.TokenExchanger, checker gmail.IdentityChecker, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Resolver{
		Store:     st,
		Exchanger: exchanger,
		Checker:   checker,
		Logger:    logger,
		Clock:     time.Now,
	}
}

// Resolve loads the connection, refreshes expired tokens, validates the
// access token, and persists any state change. Network failures fold
// into an inactive verdict; Resolve never returns a transport error.
func (r *Resolver) Resolve(ctx context.Context, connectionID string) gmail.Status {
	now := r.Clock()

	conn, err := r.Store.GetConnection(ctx, connectionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.Logger.Error("connection lookup failed", "connection", connectionID, "error", err)
		}
		return gmail.Status{IsActive: false, LastChecked: now, Error: ErrConnectionNotFound}
	}

	switch Classify(conn, now) {
	case StateInactive:
		// Known broken; do not hammer the provider.
		return gmail.Status{IsActive: false, LastChecked: now, Error: conn.LastError}
	case StateExpired:
		tokens, refreshErr := r.Exchanger.Refresh(ctx, conn.Tokens.RefreshToken)
		if refreshErr != nil {
			r.Logger.Warn("token refresh failed",
				"connection", connectionID, "email", conn.Email, "error", refreshErr)
			r.persistInactive(ctx, connectionID, ErrRefreshFailed)
			return gmail.Status{IsActive: false, LastChecked: now, Error: ErrRefreshFailed}
		}
		if tokens.RefreshToken == "" {
			// the provider may omit a new refresh token; keep the stored one
			tokens.RefreshToken = conn.Tokens.RefreshToken
		}
		if err := r.Store.UpdateTokens(ctx, connectionID, tokens, now); err != nil {
			r.Logger.Error("persist refreshed tokens failed", "connection", connectionID, "error", err)
		}
		conn.Tokens = tokens
	}

	if !r.Checker.CheckToken(ctx, conn.Tokens.AccessToken) {
		r.Logger.Warn("token validation failed", "connection", connectionID, "email", conn.Email)
		r.persistInactive(ctx, connectionID, ErrInvalidTokens)
		return gmail.Status{IsActive: false, LastChecked: now, Error: ErrInvalidTokens}
	}

	return gmail.Status{IsActive: true, LastChecked: now}
}

func (r *Resolver) persistInactive(ctx context.Context, connectionID, reason string) {
	if err := r.Store.MarkInactive(ctx, connectionID, reason); err != nil {
		r.Logger.Error("persist inactive verdict failed", "connection", connectionID, "error", err)
	}
}
