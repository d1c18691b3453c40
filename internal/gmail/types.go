// internal/gmail/types.go
package gmail

import "time"

// Tokens is the OAuth credential set stored with a connection.
// ExpiresAt is an absolute expiry in epoch milliseconds, not a duration.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Expired reports whether the access token is past its stored expiry.
func (t Tokens) Expired(now time.Time) bool {
	return t.ExpiresAt < now.UnixMilli()
}

// Connection is one linked Gmail mailbox: who owns it, the identity it
// sends as, its OAuth tokens, and its health trail.
type Connection struct {
	ID          string
	UserID      string
	WorkspaceID string
	Email       string
	Name        string
	Tokens      Tokens
	IsActive    bool
	LastError   string
	ErrorCount  int
	LastRefresh time.Time
	CreatedAt   time.Time
}

// Status is the verdict produced by a status check. It is transient;
// only the underlying connection record is persisted.
type Status struct {
	IsActive    bool
	LastChecked time.Time
	Error       string
}

// SendResult is the caller-visible outcome of a send attempt.
type SendResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
