package admin

import (
	"net/http"

	"gemini-adapter-go/internal/cache"
	"gemini-adapter-go/internal/keypool"
	"gemini-adapter-go/internal/logging"
	"gemini-adapter-go/internal/stats"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler serves the operator surface: credential lifecycle, cache
// maintenance, and runtime statistics.
type Handler struct {
	pool    *keypool.Pool
	cache   *cache.ResponseCache // nil when caching is disabled
	monitor *stats.Monitor
}

func NewHandler(pool *keypool.Pool, respCache *cache.ResponseCache, monitor *stats.Monitor) *Handler {
	return &Handler{pool: pool, cache: respCache, monitor: monitor}
}

// ListKeys handles GET /admin/keys.
func (h *Handler) ListKeys(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"keys": h.pool.Snapshot()})
}

// AddKey handles POST /admin/keys.
func (h *Handler) AddKey(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "secret is required"}})
		return
	}
	id, err := h.pool.Add(req.Secret)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	log.WithField("credential", id).Info("credential added")
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// RemoveKey handles DELETE /admin/keys/:id.
func (h *Handler) RemoveKey(c *gin.Context) {
	id := c.Param("id")
	if err := h.pool.Remove(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	log.WithField("credential", id).Info("credential removed")
	c.JSON(http.StatusOK, gin.H{"removed": id})
}

// keyAction wraps the enable/disable/reset mutations.
func (h *Handler) keyAction(c *gin.Context, name string, fn func(string) error) {
	id := c.Param("id")
	if err := fn(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	logging.WithReq(c, log.Fields{"credential": id}).Info("credential " + name)
	c.JSON(http.StatusOK, gin.H{"id": id, "action": name})
}

// EnableKey handles POST /admin/keys/:id/enable.
func (h *Handler) EnableKey(c *gin.Context) { h.keyAction(c, "enabled", h.pool.Enable) }

// DisableKey handles POST /admin/keys/:id/disable.
func (h *Handler) DisableKey(c *gin.Context) { h.keyAction(c, "disabled", h.pool.Disable) }

// ResetKey handles POST /admin/keys/:id/reset.
func (h *Handler) ResetKey(c *gin.Context) { h.keyAction(c, "reset", h.pool.Reset) }

// InvalidateCache handles POST /admin/cache/invalidate, dropping every
// cached response.
func (h *Handler) InvalidateCache(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusOK, gin.H{"invalidated": false, "reason": "cache disabled"})
		return
	}
	if err := h.cache.Flush(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": true})
}

// Stats handles GET /stats.
func (h *Handler) Stats(c *gin.Context) {
	report := h.monitor.Snapshot()

	out := gin.H{
		"uptime_sec":     report.UptimeSec,
		"requests":       report.Requests,
		"errors":         report.Errors,
		"latency_p50_ms": report.LatencyP50MS,
		"latency_p95_ms": report.LatencyP95MS,
		"latency_p99_ms": report.LatencyP99MS,
		"endpoints":      report.Endpoints,
		"keys":           h.pool.Snapshot(),
	}

	if h.cache != nil {
		hits, misses, entries := h.cache.Stats(c.Request.Context())
		hitRate := 0.0
		if hits+misses > 0 {
			hitRate = float64(hits) / float64(hits+misses)
		}
		out["cache"] = gin.H{
			"hits":     hits,
			"misses":   misses,
			"entries":  entries,
			"hit_rate": hitRate,
		}
	}
	c.JSON(http.StatusOK, out)
}
