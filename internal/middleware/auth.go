package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "gemini-adapter-go/internal/errors"
	"github.com/gin-gonic/gin"
)

// KeySource supplies the currently valid keys; hot reload swaps the
// backing config without rebuilding the router.
type KeySource func() []string

// ClientAuth authenticates the OpenAI and Gemini surfaces. Keys may
// arrive as a Bearer token, x-api-key, or x-goog-api-key. An empty key
// set disables auth.
func ClientAuth(keys KeySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed := keys()
		if len(allowed) == 0 {
			c.Next()
			return
		}
		provided := extractAPIKey(c)
		if provided == "" {
			respondUnauthorized(c, "API key not provided")
			return
		}
		if !keyAllowed(provided, allowed) {
			respondUnauthorized(c, "Invalid API key")
			return
		}
		c.Set("api_key", provided)
		c.Next()
	}
}

// AdminAuth guards the admin surface. Unlike client auth, an empty
// admin key set locks the surface rather than opening it.
func AdminAuth(keys KeySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed := keys()
		if len(allowed) == 0 {
			respondUnauthorized(c, "Admin surface is not configured")
			return
		}
		provided := extractAPIKey(c)
		if provided == "" || !keyAllowed(provided, allowed) {
			respondUnauthorized(c, "Invalid admin key")
			return
		}
		c.Next()
	}
}

// keyAllowed compares in constant time per candidate so timing never
// reveals key prefixes.
func keyAllowed(provided string, allowed []string) bool {
	ok := false
	for _, k := range allowed {
		if k == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(k)) == 1 {
			ok = true
		}
	}
	return ok
}

func extractAPIKey(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if v := strings.TrimSpace(c.GetHeader("x-api-key")); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.GetHeader("x-goog-api-key")); v != "" {
		return v
	}
	return ""
}

func respondUnauthorized(c *gin.Context, message string) {
	apiErr := apperrors.New(http.StatusUnauthorized, "invalid_api_key", "authentication_error", message)
	payload, err := apiErr.ToJSON(ErrorFormatFor(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": message}})
		return
	}
	c.Data(http.StatusUnauthorized, "application/json", payload)
	c.Abort()
}

// ErrorFormatFor picks the error envelope by surface: native paths get
// Gemini-shaped errors, everything else OpenAI-shaped.
func ErrorFormatFor(c *gin.Context) apperrors.ErrorFormat {
	if strings.HasPrefix(c.Request.URL.Path, "/gemini") {
		return apperrors.FormatGemini
	}
	return apperrors.FormatOpenAI
}
