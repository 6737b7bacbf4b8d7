package middlewares

import (
	"strconv"

	"github.com/fsdevblog/peerinvest/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics считает обработанные запросы. В метку route пишется шаблон маршрута, а не фактический путь.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Inc()
	}
}
