package handlers

import (
	"net/http"
	"time"

	"github.com/M365x55907051/juice-shop/internal/database"
	"github.com/gin-gonic/gin"
)

// Health reports database connectivity
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	if err := database.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"database":  err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   h.appName,
		"timestamp": time.Now().UTC(),
	})
}
