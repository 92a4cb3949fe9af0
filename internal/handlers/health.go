package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is anything that can report its own availability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports database and grant store health.
type HealthHandler struct {
	checks  map[string]HealthChecker
	timeout time.Duration
}

func NewHealthHandler(database, grants HealthChecker, timeout time.Duration) *HealthHandler {
	return &HealthHandler{
		checks:  map[string]HealthChecker{"database": database, "grant_store": grants},
		timeout: timeout,
	}
}

// Health handles GET /health. Any failing dependency turns the response
// into 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "healthy"}
	for name, check := range h.checks {
		if err := check.Health(ctx); err != nil {
			log.Printf("[Health] %s check failed: %v", name, err)
			body[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "connected"
	}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	c.JSON(status, body)
}
