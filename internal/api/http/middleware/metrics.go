package middleware

import (
	"strconv"
	"time"

	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records every request against its route template.
func MetricsMiddleware(m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
