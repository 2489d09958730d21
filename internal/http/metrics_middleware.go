package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsMiddleware observes handler latency by route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTP(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
