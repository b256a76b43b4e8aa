package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"logibill/pkg/logger"
)

// Logger binds log to the request context and logs one line per request.
// Health probes and scrapes log at debug.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		l := log.WithContext(c.Request.Context())
		kv := []any{
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			kv = append(kv, "error", errs)
		}

		if path == "/metrics" || c.FullPath() == "/health/live" || c.FullPath() == "/health/ready" {
			l.Debugw("http request", kv...)
			return
		}
		l.Infow("http request", kv...)
	}
}
