package middleware

import (
	"net/http"
	"runtime/debug"

	apperrors "gemini-adapter-go/internal/errors"
	"gemini-adapter-go/internal/logging"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Recovery converts panics into a formatted 500 and keeps the process
// alive.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logging.WithReq(c, log.Fields{
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("panic recovered")

				apiErr := apperrors.New(http.StatusInternalServerError,
					"internal_error", "server_error", "Internal server error")
				payload, err := apiErr.ToJSON(ErrorFormatFor(c))
				if err != nil {
					c.AbortWithStatus(http.StatusInternalServerError)
					return
				}
				c.Data(http.StatusInternalServerError, "application/json", payload)
				c.Abort()
			}
		}()
		c.Next()
	}
}
