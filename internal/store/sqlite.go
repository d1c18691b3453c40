package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/welcomehq/welcomeagent/internal/gmail"
)

//go:embed schema.sql
var schemaSQL string

// SQLite implements Store on a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database at path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Pragmas for performance + concurrency.
	// WAL allows concurrent readers while a writer is active.
	// busy_timeout reduces SQLITE_BUSY errors under contention.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetConnection(ctx context.Context, id string) (gmail.Connection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, email, name,
		       access_token, refresh_token, expires_at, token_type,
		       is_active, last_error, error_count, last_refresh, created_at
		FROM gmail_connections WHERE id = ?`, id)

	var c gmail.Connection
	var isActive int
	var lastRefresh, createdAt int64
	err := row.Scan(
		&c.ID, &c.UserID, &c.WorkspaceID, &c.Email, &c.Name,
		&c.Tokens.AccessToken, &c.Tokens.RefreshToken, &c.Tokens.ExpiresAt, &c.Tokens.TokenType,
		&isActive, &c.LastError, &c.ErrorCount, &lastRefresh, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return gmail.Connection{}, ErrNotFound
	}
	if err != nil {
		return gmail.Connection{}, fmt.Errorf("get connection %s: %w", id, err)
	}
	c.IsActive = isActive != 0
	if lastRefresh > 0 {
		c.LastRefresh = time.UnixMilli(lastRefresh)
	}
	if createdAt > 0 {
		c.CreatedAt = time.UnixMilli(createdAt)
	}
	return c, nil
}

func (s *SQLite) CreateConnection(ctx context.Context, c gmail.Connection) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var lastRefresh int64
	if !c.LastRefresh.IsZero() {
		lastRefresh = c.LastRefresh.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gmail_connections
			(id, user_id, workspace_id, email, name,
			 access_token, refresh_token, expires_at, token_type,
			 is_active, last_error, error_count, last_refresh, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.WorkspaceID, c.Email, c.Name,
		c.Tokens.AccessToken, c.Tokens.RefreshToken, c.Tokens.ExpiresAt, c.Tokens.TokenType,
		boolToInt(c.IsActive), c.LastError, c.ErrorCount,
		lastRefresh, createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("create connection %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLite) UpdateTokens(ctx context.Context, id string, tokens gmail.Tokens, refreshedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE gmail_connections
		SET access_token = ?, refresh_token = ?, expires_at = ?, token_type = ?,
		    last_refresh = ?, error_count = 0
		WHERE id = ?`,
		tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt, tokens.TokenType,
		refreshedAt.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("update tokens for %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *SQLite) MarkInactive(ctx context.Context, id string, lastError string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE gmail_connections
		SET is_active = 0, last_error = ?, error_count = error_count + 1
		WHERE id = ?`,
		lastError, id,
	)
	if err != nil {
		return fmt.Errorf("mark inactive %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *SQLite) EnsureUser(ctx context.Context, userID string, initialSends int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, remaining_sends, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		userID, initialSends, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", userID, err)
	}
	return nil
}

func (s *SQLite) RemainingSends(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT remaining_sends FROM users WHERE id = ?`, userID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("remaining sends for %s: %w", userID, err)
	}
	return n, nil
}

func (s *SQLite) DecrementSends(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET remaining_sends = remaining_sends - 1
		WHERE id = ? AND remaining_sends > 0`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("decrement sends for %s: %w", userID, err)
	}
	return requireRow(res, userID)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLite)(nil)
