package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports an unhealthy dependency by returning an error.
type HealthCheck func(ctx context.Context) error

// Health handles GET /health
func Health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		overall := "healthy"
		if status != http.StatusOK {
			overall = "unhealthy"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
