// Package store persists Gmail connections and user send quotas.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/welcomehq/welcomeagent/internal/gmail"
)

// ErrNotFound is returned when a connection or user id has no record.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface the send path needs. Updates are
// last-write-wins; nothing here spans rows transactionally.
type Store interface {
	GetConnection(ctx context.Context, id string) (gmail.Connection, error)
	CreateConnection(ctx context.Context, conn gmail.Connection) error

	// UpdateTokens records a successful refresh: new token set,
	// last_refresh stamped, error_count cleared.
	UpdateTokens(ctx context.Context, id string, tokens gmail.Tokens, refreshedAt time.Time) error

	// MarkInactive records a failure verdict: is_active false, the
	// message in last_error, error_count incremented.
	MarkInactive(ctx context.Context, id string, lastError string) error

	EnsureUser(ctx context.Context, userID string, initialSends int) error
	RemainingSends(ctx context.Context, userID string) (int, error)
	DecrementSends(ctx context.Context, userID string) error
}
