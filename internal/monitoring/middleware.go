package monitoring

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// MonitoringMiddleware counts, times and logs every request.
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		method, path := c.Request.Method, c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(status)
		if status >= 400 {
			metrics.IncrementError()
		}

		logger.RequestLogger(method, path, c.ClientIP(), status, duration)
		for _, err := range c.Errors {
			logger.APIErrorLogger(err.Err, method, path, status)
		}
		if status >= 500 {
			logger.SystemLogger("server_error", fmt.Sprintf("status %d for %s %s", status, method, path))
		}
	}
}
