package router

import (
	"time"

	"psyeval/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs every request through zap, at a level matching the
// response class.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if v, exists := c.Get("user"); exists {
			if user, ok := v.(*models.User); ok {
				fields = append(fields, zap.String("user_id", user.ID.String()))
			}
		}
		for _, err := range c.Errors {
			fields = append(fields, zap.Error(err.Err))
		}

		switch {
		case status >= 500:
			log.Error("Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			// Successes stay at debug to keep the log readable.
			log.Debug("Request processed", fields...)
		}
	}
}
