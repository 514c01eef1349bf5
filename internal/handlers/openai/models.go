package openai

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Models handles GET /v1/models.
func (h *Handler) Models(c *gin.Context) {
	names := h.resolver.ClientNames()
	data := make([]gin.H, 0, len(names))
	for _, name := range names {
		data = append(data, gin.H{
			"id":       name,
			"object":   "model",
			"owned_by": "google",
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   data,
	})
}
