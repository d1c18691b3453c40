package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/welcomehq/welcomeagent/internal/gmail"
	"github.com/welcomehq/welcomeagent/internal/send"
	"github.com/welcomehq/welcomeagent/internal/store"
)

// SendService is the send path as the HTTP layer sees it.
type SendService interface {
	Send(ctx context.Context, req send.Request) gmail.SendResult
}

// StatusService produces connection verdicts.
type StatusService interface {
	Resolve(ctx context.Context, connectionID string) gmail.Status
}

// Connector drives the OAuth connect flow for new Gmail connections.
type Connector interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (gmail.Tokens, error)
	Profile(ctx context.Context, accessToken string) (string, error)
}

// API wires the HTTP surface to the underlying services.
type API struct {
	Store     store.Store
	Sender    SendService
	Status    StatusService
	Connector Connector
	Logger    *slog.Logger

	// DefaultSendQuota seeds users created through the connect flow.
	DefaultSendQuota int
}

// SetupRouter registers every route on a fresh gin engine.
func SetupRouter(a *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(a.Logger))

	api := r.Group("/api")
	{
		api.POST("/email/send", func(c *gin.Context) { handleSendEmail(a, c) })
		api.GET("/connections/:id", func(c *gin.Context) { handleGetConnection(a, c) })
		api.GET("/connections/:id/status", func(c *gin.Context) { handleConnectionStatus(a, c) })
		api.GET("/oauth/gmail/url", func(c *gin.Context) { handleOAuthURL(a, c) })
		api.GET("/oauth/gmail/callback", func(c *gin.Context) { handleOAuthCallback(a, c) })
	}

	return r
}
