package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is any backend that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check HTTP requests
type HealthHandler struct {
	db      Pinger
	cache   Pinger
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, timeout: 2 * time.Second}
}

// Health returns basic health status
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "test-platform",
	})
}

// Ready checks if the service is ready to accept traffic. The session cache
// being down only degrades readiness since requests fall back to the store.
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not_ready",
			"service":  "test-platform",
			"database": "disconnected",
		})
		return
	}

	status, cache := "ready", "connected"
	if err := h.cache.Ping(ctx); err != nil {
		status, cache = "degraded", "disconnected"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"service":  "test-platform",
		"database": "connected",
		"cache":    cache,
	})
}
