package handler

import (
	"net/http"

	"friendfinder/backend/internal/models"
	"friendfinder/backend/internal/moderation"

	"github.com/gin-gonic/gin"
)

// GetSession — GET /random-chat/session. Активна сесія користувача з
// останніми 50 повідомленнями; також канонічний poll для fallback-режиму.
func (h *Handler) GetSession(c *gin.Context) {
	userID := c.GetString("user_id")
	session, messages, err := h.Hub.Sessions.Snapshot(userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":     session,
		"messages":    messages,
		"anonymousId": session.AnonIDOf(userID),
	})
}

type sessionActionRequest struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

// PostSession — POST /random-chat/session. Єдина підтримувана дія — "end".
func (h *Handler) PostSession(c *gin.Context) {
	userID := c.GetString("user_id")

	var req sessionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}
	if req.Action != "end" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported action"})
		return
	}

	if err := h.Hub.Sessions.End(req.SessionID, userID, models.EndReasonUserLeft); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type messageRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Type      string `json:"type"`
}

// PostMessage — POST /random-chat/message. HTTP-еквівалент message-send для
// fallback-режиму; проходить ту саму модерацію, що й канал.
func (h *Handler) PostMessage(c *gin.Context) {
	userID := c.GetString("user_id")

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and content are required"})
		return
	}

	verdict := h.Hub.Guard.ModerateContent(req.Content, userID, moderation.Options{})
	if !verdict.IsAllowed {
		status := http.StatusBadRequest
		if verdict.Reason == moderation.ReasonRateLimited {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"error": verdict.Reason, "severity": verdict.Severity})
		return
	}

	msg, err := h.Hub.Sessions.SendMessage(req.SessionID, userID, verdict.FilteredContent, req.Type)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type reportRequest struct {
	SessionID   string   `json:"sessionId"`
	Reason      string   `json:"reason"`
	Description string   `json:"description"`
	MessageIDs  []string `json:"messageIds"`
}

// PostReport — POST /random-chat/report. Скарга примусово завершує сесію.
func (h *Handler) PostReport(c *gin.Context) {
	userID := c.GetString("user_id")

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" || req.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and reason are required"})
		return
	}

	report, err := h.Hub.Sessions.FileReport(userID, req.SessionID, req.Reason, req.Description, req.MessageIDs)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reportId": report.ReportID})
}
