package middleware

import (
	"net/http"
	"strings"

	"github.com/go-authgate/sallyport/internal/util"

	"github.com/gin-gonic/gin"
)

// MetricsAuthMiddleware guards /metrics with a static Bearer token. An empty
// token leaves the endpoint open.
func MetricsAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			denyMetrics(c, "Bearer token required")
			return
		}
		if !util.ConstantTimeEqual(provided, token) {
			denyMetrics(c, "Invalid token")
			return
		}
		c.Next()
	}
}

func denyMetrics(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="Metrics"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}
