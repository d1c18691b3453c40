package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/welcomehq/welcomeagent/internal/gmail"
	"github.com/welcomehq/welcomeagent/internal/send"
	"github.com/welcomehq/welcomeagent/internal/store"
)

type sendEmailRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	To           string `json:"to" binding:"required,email"`
	Subject      string `json:"subject" binding:"required"`
	Body         string `json:"body" binding:"required"`
	Test         bool   `json:"test"`
}

// connectionView is the stored record with tokens redacted.
type connectionView struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsActive    bool   `json:"is_active"`
	LastError   string `json:"last_error,omitempty"`
	ErrorCount  int    `json:"error_count"`
}

func handleSendEmail(a *API, c *gin.Context) {
	var in sendEmailRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	result := a.Sender.Send(c.Request.Context(), send.Request{
		ConnectionID: in.ConnectionID,
		To:           in.To,
		Subject:      in.Subject,
		Body:         in.Body,
		Test:         in.Test,
	})
	// send failures are an application outcome, not an HTTP failure
	c.JSON(200, result)
}

func handleGetConnection(a *API, c *gin.Context) {
	conn, err := a.Store.GetConnection(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(404, gin.H{"error": "Connection not found"})
			return
		}
		c.JSON(500, gin.H{"error": "Database error"})
		return
	}
	c.JSON(200, connectionView{
		ID:          conn.ID,
		UserID:      conn.UserID,
		WorkspaceID: conn.WorkspaceID,
		Email:       conn.Email,
		Name:        conn.Name,
		IsActive:    conn.IsActive,
		LastError:   conn.LastError,
		ErrorCount:  conn.ErrorCount,
	})
}

func handleConnectionStatus(a *API, c *gin.Context) {
	verdict := a.Status.Resolve(c.Request.Context(), c.Param("id"))
	c.JSON(200, gin.H{
		"is_active":    verdict.IsActive,
		"last_checked": verdict.LastChecked.UnixMilli(),
		"error":        verdict.Error,
	})
}

func handleOAuthURL(a *API, c *gin.Context) {
	userID := c.Query("user_id")
	workspaceID := c.Query("workspace_id")
	if userID == "" || workspaceID == "" {
		c.JSON(400, gin.H{"error": "user_id and workspace_id are required"})
		return
	}
	state := userID + ":" + workspaceID
	c.JSON(200, gin.H{"url": a.Connector.AuthURL(state)})
}

func handleOAuthCallback(a *API, c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	userID, workspaceID, ok := strings.Cut(state, ":")
	if code == "" || !ok || userID == "" || workspaceID == "" {
		c.JSON(400, gin.H{"error": "Invalid callback"})
		return
	}

	ctx := c.Request.Context()
	tokens, err := a.Connector.Exchange(ctx, code)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	email, err := a.Connector.Profile(ctx, tokens.AccessToken)
	if err != nil {
		c.JSON(502, gin.H{"error": err.Error()})
		return
	}

	conn := gmail.Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		Email:       email,
		Name:        email,
		Tokens:      tokens,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	if err := a.Store.EnsureUser(ctx, userID, a.DefaultSendQuota); err != nil {
		c.JSON(500, gin.H{"error": "Database error"})
		return
	}
	if err := a.Store.CreateConnection(ctx, conn); err != nil {
		c.JSON(500, gin.H{"error": "Failed to save connection"})
		return
	}
	c.JSON(200, gin.H{"connection_id": conn.ID, "email": email})
}
