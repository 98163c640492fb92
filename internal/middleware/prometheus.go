package middleware

import (
	"time"

	"todo_app/internal/observability"

	"github.com/gin-gonic/gin"
)

const unmatchedRoute = "unmatched"

// scrape requests are not application traffic
var unmeasuredRoutes = map[string]bool{
	"/metrics": true,
}

// PrometheusMiddleware records request count, latency and in-flight
// requests per route template, so /todo/:id is one series for every todo.
func PrometheusMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if unmeasuredRoutes[route] {
			c.Next()
			return
		}
		if route == "" {
			route = unmatchedRoute
		}

		metrics.HTTPRequestsInFlight.Inc()
		start := time.Now()
		defer func() {
			metrics.HTTPRequestsInFlight.Dec()
			metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		}()

		c.Next()
	}
}
