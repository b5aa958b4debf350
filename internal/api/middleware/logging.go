package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger is satisfied by pkg/logger.BatchLogger
type RequestLogger interface {
	LogRequest(method, endpoint string, statusCode int, latency time.Duration, fields logrus.Fields)
}

// LoggingMiddleware logs every request through the request logger
func LoggingMiddleware(logger RequestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := logrus.Fields{
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"user_agent": c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["error_message"] = c.Errors.String()
		}

		logger.LogRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start), fields)
	}
}
