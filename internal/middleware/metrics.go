package middleware

import (
	"strconv"

	"cashback-advisor/internal/metrics"

	"github.com/gin-gonic/gin"
)

// RequestMetrics считает запросы по шаблону маршрута и статусу ответа.
func RequestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
