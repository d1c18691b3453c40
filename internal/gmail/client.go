package gmail

import "context"

// TokenExchanger swaps a refresh token for a fresh token set. It never
// touches storage; persisting the result is the caller's job.
type TokenExchanger interface {
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

// IdentityChecker confirms an access token is currently accepted by the
// provider. Transport errors count as invalid: the caller cannot tell a
// bad token from an unreachable provider and must fail closed either way.
type IdentityChecker interface {
	CheckToken(ctx context.Context, accessToken string) bool
}

// Mailer submits a base64url-encoded RFC 2822 message on behalf of the
// connection that owns the access token.
type Mailer interface {
	SendRaw(ctx context.Context, accessToken, raw string) error
}
