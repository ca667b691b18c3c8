package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/groupdesk/pkg/metrics"
)

// unmatchedRoute labels requests that hit no route so scanners cannot blow up
// label cardinality.
const unmatchedRoute = "unmatched"

// Metrics observes latency per route template and tracks in-flight requests.
// Websocket streams live for hours and would skew both, so they are skipped.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if websocketUpgrade(c) {
			c.Next()
			return
		}

		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
