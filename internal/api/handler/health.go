package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetHealth — GET /health. Агрегований стан ядра для зовнішнього моніторингу.
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.Health())
}
