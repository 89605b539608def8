package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware returns gin middleware that records HTTP request count and
// latency for every request, keyed by the route's path pattern rather than
// the literal path so per-experiment paths share one series.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		durationMs := float64(time.Since(start).Milliseconds())
		statusCode := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		RecordHTTPRequest(c.Request.Method, path, statusCode, durationMs)
	}
}
