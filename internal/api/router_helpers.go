package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/middleware"
)

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}

		// Health polling is frequent; keep it out of info logs.
		entry := log.WithFields(fields)
		if c.FullPath() == "/api/v1/health" || c.FullPath() == metricsPath {
			entry.Debug("request")
			return
		}
		entry.Info("request")
	}
}
