package middleware

import (
	"github.com/gin-gonic/gin"
)

// RequestMetrics is implemented by the Prometheus recorder.
type RequestMetrics interface {
	RequestStarted(method string) func(route string, status int)
}

// Metrics records request count, latency and in-flight requests labelled by route template.
func Metrics(m RequestMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.RequestStarted(c.Request.Method)
		c.Next()
		done(c.FullPath(), c.Writer.Status())
	}
}
