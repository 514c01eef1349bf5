package gemini

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Models handles GET /gemini/v1beta/models in the upstream's shape.
func (h *Handler) Models(c *gin.Context) {
	names := h.resolver.UpstreamNames()
	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		out = append(out, gin.H{
			"name":                       "models/" + name,
			"displayName":                name,
			"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent"},
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}
