package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/service"
)

// Metrics records per-request latency and status counters. Scrape and probe
// endpoints are excluded so the histogram reflects API traffic only.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	skip := map[string]struct{}{
		"/metrics": {},
		"/health":  {},
		"/ready":   {},
	}
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if _, excluded := skip[path]; metricsSvc == nil || excluded {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
