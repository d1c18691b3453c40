// internal/runtime/google.go — real implementations of the narrow Gmail
// interfaces over golang.org/x/oauth2 and the generated Gmail API client.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	gc "github.com/welcomehq/welcomeagent/internal/gmail"
)

// Google talks to the real OAuth token endpoint and Gmail API. Endpoint
// and HTTPClient exist so tests can point it at an httptest server.
type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// TokenURL overrides the Google token endpoint when non-empty.
	TokenURL string
	// APIEndpoint overrides the Gmail API base URL when non-empty.
	APIEndpoint string

	HTTPClient *http.Client
	Clock      func() time.Time
}

// NewGoogle returns an adapter bound to the given OAuth client.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Clock:        time.Now,
	}
}

func (g *Google) oauthConfig() *oauth2.Config {
	endpoint := google.Endpoint
	if g.TokenURL != "" {
		endpoint = oauth2.Endpoint{AuthURL: endpoint.AuthURL, TokenURL: g.TokenURL}
	}
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  g.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       []string{gmail.GmailSendScope, "https://www.googleapis.com/auth/userinfo.email"},
	}
}

func (g *Google) oauthContext(ctx context.Context) context.Context {
	if g.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
	}
	return ctx
}

// AuthURL returns the consent URL for the connect flow. Offline access
// plus forced approval so Google issues a refresh token.
func (g *Google) AuthURL(state string) string {
	return g.oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange swaps an authorization code for the initial token set.
func (g *Google) Exchange(ctx context.Context, code string) (gc.Tokens, error) {
	tok, err := g.oauthConfig().Exchange(g.oauthContext(ctx), code)
	if err != nil {
		return gc.Tokens{}, tokenError(err)
	}
	return g.toTokens(tok), nil
}

// Refresh exchanges a stored refresh token for a new access token. The
// returned set carries over the old refresh token if Google omits a new
// one; storage is untouched.
func (g *Google) Refresh(ctx context.Context, refreshToken string) (gc.Tokens, error) {
	src := g.oauthConfig().TokenSource(g.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return gc.Tokens{}, tokenError(err)
	}
	tokens := g.toTokens(tok)
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

func (g *Google) toTokens(tok *oauth2.Token) gc.Tokens {
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	expiresAt := tok.Expiry.UnixMilli()
	if tok.Expiry.IsZero() {
		expiresAt = g.Clock().Add(time.Hour).UnixMilli()
	}
	return gc.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
		TokenType:    tokenType,
	}
}

func (g *Google) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}
	if g.APIEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.APIEndpoint))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

// CheckToken hits the profile endpoint with the bearer token. Any
// failure, transport included, reads as invalid: the caller cannot tell
// a bad token from an unreachable provider and must fail closed.
func (g *Google) CheckToken(ctx context.Context, accessToken string) bool {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return false
	}
	_, err = svc.Users.GetProfile("me").Context(ctx).Do()
	return err == nil
}

// Profile returns the mailbox address behind an access token. Used once
// at connect time to name the new connection.
func (g *Google) Profile(ctx context.Context, accessToken string) (string, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return "", err
	}
	prof, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", apiError(err)
	}
	return prof.EmailAddress, nil
}

// SendRaw submits an already base64url-encoded RFC 2822 message.
func (g *Google) SendRaw(ctx context.Context, accessToken, raw string) error {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return err
	}
	_, err = svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return apiError(err)
	}
	return nil
}

// tokenError reduces an oauth2 failure to the provider's own message
// when the response body carried one.
func tokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorDescription != "" {
			return fmt.Errorf("%s: %s", rerr.ErrorCode, rerr.ErrorDescription)
		}
		if rerr.ErrorCode != "" {
			return errors.New(rerr.ErrorCode)
		}
	}
	return fmt.Errorf("token exchange failed: %w", err)
}

// apiError prefers the message Google put in the error body.
func apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return errors.New(gerr.Message)
	}
	return err
}

var (
	_ gc.TokenExchanger  = (*Google)(nil)
	_ gc.IdentityChecker = (*Google)(nil)
	_ gc.Mailer          = (*Google)(nil)
)
