package send

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/welcomehq/welcomeagent/internal/gmail"
	"github.com/welcomehq/welcomeagent/internal/store"
)

type fakeLimiter struct {
	admit bool
	calls int
}

func (f *fakeLimiter) TryAcquire(connectionID string) bool {
	_ = connectionID
	f.calls++
	return f.admit
}

type fakeResolver struct {
	status gmail.Status
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, connectionID string) gmail.Status {
	_ = ctx
	_ = connectionID
	f.calls++
	return f.status
}

type fakeMailer struct {
	err    error
	tokens []string
	raws   []string
}

func (f *fakeMailer) SendRaw(ctx context.Context, accessToken, raw string) error {
	_ = ctx
	f.tokens = append(f.tokens, accessToken)
	f.raws = append(f.raws, raw)
	return f.err
}

type fakeStore struct {
	conn       gmail.Connection
	connErr    error
	decrements []string
	decErr     error
}

func (f *fakeStore) GetConnection(ctx context.Context, id string) (gmail.Connection, error) {
	_ = ctx
	_ = id
	if f.connErr != nil {
		return gmail.Connection{}, f.connErr
	}
	return f.conn, nil
}

func (f *fakeStore) CreateConnection(ctx context.Context, conn gmail.Connection) error {
	_ = ctx
	_ = conn
	return nil
}

func (f *fakeStore) UpdateTokens(ctx context.Context, id string, tokens gmail.Tokens, refreshedAt time.Time) error {
	_ = ctx
	_ = id
	_ = tokens
	_ = refreshedAt
	return nil
}

func (f *fakeStore) MarkInactive(ctx context.Context, id string, lastError string) error {
	_ = ctx
	_ = id
	_ = lastError
	return nil
}

func (f *fakeStore) EnsureUser(ctx context.Context, userID string, initialSends int) error {
	_ = ctx
	_ = userID
	_ = initialSends
	return nil
}

func (f *fakeStore) RemainingSends(ctx context.Context, userID string) (int, error) {
	_ = ctx
	_ = userID
	return 0, nil
}

func (f *fakeStore) DecrementSends(ctx context.Context, userID string) error {
	f.decrements = append(f.decrements, userID)
	return f.decErr
}

var _ store.Store = (*fakeStore)(nil)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConn() gmail.Connection {
	return gmail.Connection{
		ID:     "conn-1",
		UserID: "user-1",
		Email:  "ops@example.com",
		Name:   "Example Ops",
		Tokens: gmail.Tokens{AccessToken: "at-fresh", TokenType: "Bearer"},
	}
}

func newTestSender(lim *fakeLimiter, res *fakeResolver, st *fakeStore, m *fakeMailer) *Sender {
	return NewSender(lim, res, st, m, slogDiscard())
}

func TestSendRateLimited(t *testing.T) {
	lim := &fakeLimiter{admit: false}
	res := &fakeResolver{status: gmail.Status{IsActive: true}}
	m := &fakeMailer{}
	s := newTestSender(lim, res, &fakeStore{conn: testConn()}, m)

	got := s.Send(context.Background(), Request{ConnectionID: "conn-1", To: "new@user.com"})
	if got.Success || got.Error != ErrRateLimited {
		t.Fatalf("result = %+v, want %q", got, ErrRateLimited)
	}
	if res.calls != 0 {
		t.Fatalf("status resolved despite rate limit rejection")
	}
	if len(m.raws) != 0 {
		t.Fatalf("network call made despite rate limit rejection")
	}
}

func TestSendInactiveConnection(t *testing.T) {
	lim := &fakeLimiter{admit: true}
	res := &fakeResolver{status: gmail.Status{IsActive: false, Error: "Invalid tokens"}}
	m := &fakeMailer{}
	s := newTestSender(lim, res, &fakeStore{conn: testConn()}, m)

	got := s.Send(context.Background(), Request{ConnectionID: "conn-1", To: "new@user.com"})
	if got.Success || got.Error != "Invalid tokens" {
		t.Fatalf("result = %+v, want resolver error", got)
	}
	if len(m.raws) != 0 {
		t.Fatalf("send attempted for inactive connection")
	}
}

func TestSendSuccessDecrementsQuota(t *testing.T) {
	lim := &fakeLimiter{admit: true}
	res := &fakeResolver{status: gmail.Status{IsActive: true}}
	st := &fakeStore{conn: testConn()}
	m := &fakeMailer{}
	s := newTestSender(lim, res, st, m)

	got := s.Send(context.Background(), Request{
		ConnectionID: "conn-1",
		To:           "new@user.com",
		Subject:      "Welcome!",
		Body:         "<p>Hi</p>",
	})
	if !got.Success || got.Error != "" {
		t.Fatalf("result = %+v, want success", got)
	}
	if lim.calls != 1 {
		t.Fatalf("limiter calls = %d, want 1", lim.calls)
	}
	if len(m.tokens) != 1 || m.tokens[0] != "at-fresh" {
		t.Fatalf("mailer tokens = %v, want reloaded access token", m.tokens)
	}
	if len(st.decrements) != 1 || st.decrements[0] != "user-1" {
		t.Fatalf("decrements = %v, want one for user-1", st.decrements)
	}
}

func TestSendTestModeSkipsQuota(t *testing.T) {
	lim := &fakeLimiter{admit: true}
	res := &fakeResolver{status: gmail.Status{IsActive: true}}
	st := &fakeStore{conn: testConn()}
	s := newTestSender(lim, res, st, &fakeMailer{})

	got := s.Send(context.Background(), Request{ConnectionID: "conn-1", To: "new@user.com", Test: true})
	if !got.Success {
		t.Fatalf("result = %+v, want success", got)
	}
	if len(st.decrements) != 0 {
		t.Fatalf("test send decremented quota: %v", st.decrements)
	}
}

func TestSendSurfacesProviderError(t *testing.T) {
	lim := &fakeLimiter{admit: true}
	res := &fakeResolver{status: gmail.Status{IsActive: true}}
	st := &fakeStore{conn: testConn()}
	m := &fakeMailer{err: errors.New("Precondition check failed")}
	s := newTestSender(lim, res, st, m)

	got := s.Send(context.Background(), Request{ConnectionID: "conn-1", To: "new@user.com"})
	if got.Success || got.Error != "Precondition check failed" {
		t.Fatalf("result = %+v, want provider error", got)
	}
	if len(st.decrements) != 0 {
		t.Fatalf("quota decremented for failed send")
	}
}

func TestSendQuotaFailureDoesNotFailSend(t *testing.T) {
	lim := &fakeLimiter{admit: true}
	res := &fakeResolver{status: gmail.Status{IsActive: true}}
	st := &fakeStore{conn: testConn(), decErr: errors.New("db locked")}
	s := newTestSender(lim, res, st, &fakeMailer{})

	got := s.Send(context.Background(), Request{ConnectionID: "conn-1", To: "new@user.com"})
	if !got.Success {
		t.Fatalf("result = %+v, want success despite decrement failure", got)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(testConn(), "new@user.com", "Welcome aboard", "<p>Hello!</p>")
	want := strings.Join([]string{
		`Content-Type: text/html; charset="UTF-8"`,
		"MIME-Version: 1.0",
		"To: new@user.com",
		`From: "Example Ops" <ops@example.com>`,
		"Subject: Welcome aboard",
		"",
		"<p>Hello!</p>",
	}, "\r\n")
	if msg != want {
		t.Fatalf("message:\n%q\nwant:\n%q", msg, want)
	}
}

func TestEncodeRawRoundTrip(t *testing.T) {
	msg := BuildMessage(testConn(), "new@user.com", "Hello? a+b/c", "<p>body with ÿ unicode</p>")
	raw := EncodeRaw(msg)

	if strings.ContainsAny(raw, "+/=") {
		t.Fatalf("encoded form contains forbidden characters: %q", raw)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != msg {
		t.Fatalf("round trip mismatch:\n%q\nwant:\n%q", decoded, msg)
	}
}
