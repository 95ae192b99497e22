package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter is a dependency that tracks its own connection state.
type HealthReporter interface {
	IsHealthy() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	database Pinger
	broker   HealthReporter
}

// NewHealthHandler creates a new HealthHandler instance. Either dependency
// may be nil when the in-memory store or a brokerless notifier is in use.
func NewHealthHandler(database Pinger, broker HealthReporter) *HealthHandler {
	return &HealthHandler{
		database: database,
		broker:   broker,
	}
}

// LivenessProbe checks if the application is running.
func (h *HealthHandler) LivenessProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now(),
	})
}

// ReadinessProbe checks if the application is ready to serve traffic.
func (h *HealthHandler) ReadinessProbe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "UP", "time": time.Now()}

	if h.database != nil {
		if err := h.database.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "DOWN",
				"database": "unhealthy",
				"error":    err.Error(),
				"time":     time.Now(),
			})
			return
		}
		body["database"] = "healthy"
	}

	if h.broker != nil {
		if !h.broker.IsHealthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"broker": "unhealthy",
				"time":   time.Now(),
			})
			return
		}
		body["broker"] = "healthy"
	}

	c.JSON(http.StatusOK, body)
}
