package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"friendfinder/backend/internal/chathub"
	"friendfinder/backend/internal/config"
	"friendfinder/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type joinQueueRequest struct {
	ChatType    string             `json:"chatType"`
	Preferences models.Preferences `json:"preferences"`
}

// JoinQueue — POST /random-chat/queue. Відповідає або матчем, або позицією в черзі.
func (h *Handler) JoinQueue(c *gin.Context) {
	userID := c.GetString("user_id")

	var req joinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ChatType != "" {
		req.Preferences.ChatType = req.ChatType
	}

	result, err := h.Hub.Matcher.JoinQueue(userID, req.Preferences)
	if err != nil {
		if errors.Is(err, chathub.ErrTooManyReports) {
			c.Header("Retry-After", strconv.Itoa(int(config.ReportGateWindow/time.Second)))
		}
		abortWithError(c, err)
		return
	}

	if result.Matched != nil {
		session := result.Matched
		c.JSON(http.StatusOK, gin.H{
			"type":      "match_found",
			"sessionId": session.SessionID,
			"chatType":  session.ChatType,
			"partner": models.PartnerInfo{
				AnonID:   session.AnonIDOf(session.PartnerOf(userID)),
				Username: session.AnonIDOf(session.PartnerOf(userID)),
				IsActive: true,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":              "queued",
		"position":          result.Position,
		"estimatedWaitTime": int(result.EstimatedWait / time.Second),
		"anonymousId":       result.Entry.AnonID,
	})
}

// LeaveQueue — DELETE /random-chat/queue. 404, якщо користувача немає в черзі.
func (h *Handler) LeaveQueue(c *gin.Context) {
	userID := c.GetString("user_id")
	if err := h.Hub.Matcher.LeaveQueue(userID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetQueueStatus — GET /random-chat/queue.
func (h *Handler) GetQueueStatus(c *gin.Context) {
	userID := c.GetString("user_id")
	status, err := h.Hub.Matcher.Status(userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"position":          status.Position,
		"estimatedWaitTime": int(status.EstimatedWait / time.Second),
		"chatType":          status.Entry.Preferences.ChatType,
		"joinedAt":          status.Entry.JoinedAt,
	})
}
