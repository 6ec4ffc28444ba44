package handler

import (
	"errors"
	"net/http"

	"friendfinder/backend/internal/chathub"

	"github.com/gin-gonic/gin"
)

// Handler містить посилання на ChatHub
type Handler struct {
	Hub *chathub.ManagerService
}

func NewHandler(hub *chathub.ManagerService) *Handler {
	return &Handler{Hub: hub}
}

// RegisterRoutes вішає всі роути сервісу на движок Gin.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/health", h.GetHealth)

	rc := r.Group("/random-chat", h.AuthRequired())
	rc.POST("/queue", h.JoinQueue)
	rc.DELETE("/queue", h.LeaveQueue)
	rc.GET("/queue", h.GetQueueStatus)
	rc.GET("/session", h.GetSession)
	rc.POST("/session", h.PostSession)
	rc.POST("/message", h.PostMessage)
	rc.POST("/report", h.PostReport)
}

// httpStatus мапить помилки сервісів на HTTP-коди.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, chathub.ErrInvalidChatType), errors.Is(err, chathub.ErrInvalidReason):
		return http.StatusBadRequest
	case errors.Is(err, chathub.ErrAlreadyQueued),
		errors.Is(err, chathub.ErrAlreadyInSession),
		errors.Is(err, chathub.ErrAlreadyReported):
		return http.StatusConflict
	case errors.Is(err, chathub.ErrTooManyReports):
		return http.StatusTooManyRequests
	case errors.Is(err, chathub.ErrNotQueued),
		errors.Is(err, chathub.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chathub.ErrNotAParticipant):
		return http.StatusNotFound // не розкриваємо існування чужої сесії
	case errors.Is(err, chathub.ErrSessionNotActive):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(httpStatus(err), gin.H{
		"error": err.Error(),
		"code":  chathub.ErrorCode(err),
	})
}
