package middleware

import (
	"time"

	"gemini-adapter-go/internal/logging"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Logger emits one structured line per request after it completes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logging.WithReq(c, log.Fields{
			"status":      c.Writer.Status(),
			"duration_ms": logging.DurationMS(time.Since(start)),
			"bytes":       c.Writer.Size(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}
