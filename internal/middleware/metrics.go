package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wifi-presence-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records request count and latency per route template. Unknown paths
// share one label so scanners cannot inflate series cardinality.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if _, ok := skipped[path]; ok {
			return
		}
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
