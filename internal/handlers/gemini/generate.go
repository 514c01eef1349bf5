package gemini

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"gemini-adapter-go/internal/cache"
	apperrors "gemini-adapter-go/internal/errors"
	"gemini-adapter-go/internal/logging"
	"gemini-adapter-go/internal/models"
	"gemini-adapter-go/internal/upstream"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Handler serves the native pass-through surface: request and response
// bodies travel untranslated, only credentials and failover are added.
type Handler struct {
	dispatcher *upstream.Dispatcher
	resolver   *models.Resolver
	cache      *cache.ResponseCache // nil when caching is disabled
}

func NewHandler(dispatcher *upstream.Dispatcher, resolver *models.Resolver, respCache *cache.ResponseCache) *Handler {
	return &Handler{dispatcher: dispatcher, resolver: resolver, cache: respCache}
}

// ModelAction routes POST /gemini/v1beta/models/{model}:{action}. Gin
// cannot split on the colon, so the wildcard segment is parsed here.
func (h *Handler) ModelAction(c *gin.Context) {
	segment := strings.TrimPrefix(c.Param("modelAction"), "/")
	model, action, ok := strings.Cut(segment, ":")
	if !ok || model == "" {
		respondError(c, apperrors.NewKind(apperrors.KindBadRequest, http.StatusBadRequest,
			"Expected models/{model}:{action}"))
		return
	}

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, apperrors.NewKind(apperrors.KindBadRequest, http.StatusBadRequest,
			"Failed to read request body"))
		return
	}
	if !gjson.ValidBytes(rawBody) {
		respondError(c, apperrors.NewKind(apperrors.KindBadRequest, http.StatusBadRequest,
			"Request body is not valid JSON"))
		return
	}

	resolved := h.resolver.Resolve(model)

	switch action {
	case "generateContent":
		h.generate(c, resolved, rawBody)
	case "streamGenerateContent":
		h.stream(c, resolved, rawBody)
	default:
		respondError(c, apperrors.NewKind(apperrors.KindBadRequest, http.StatusBadRequest,
			"Unsupported action "+action))
	}
}

func (h *Handler) generate(c *gin.Context, model string, rawBody []byte) {
	compute := func(ctx context.Context) ([]byte, *apperrors.APIError) {
		return h.dispatcher.Execute(ctx, model, rawBody)
	}

	var payload []byte
	var apiErr *apperrors.APIError

	if h.cache != nil && cache.EligibleNative(rawBody) {
		key, fpErr := cache.Fingerprint(model, rawBody)
		if fpErr == nil {
			payload, apiErr = h.cache.GetOrCompute(c.Request.Context(), key, compute)
		} else {
			log.WithError(fpErr).Warn("fingerprint failed; bypassing cache")
			payload, apiErr = compute(c.Request.Context())
		}
	} else {
		payload, apiErr = compute(c.Request.Context())
	}

	if apiErr != nil {
		respondError(c, apiErr)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// stream copies upstream SSE bytes to the client verbatim.
func (h *Handler) stream(c *gin.Context, model string, rawBody []byte) {
	result, release, apiErr := h.dispatcher.ExecuteStream(c.Request.Context(), model, rawBody)
	if apiErr != nil {
		respondError(c, apiErr)
		return
	}
	defer release()
	defer result.Body.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := result.Body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			logging.WithReq(c, log.Fields{"model": model}).
				WithError(err).Warn("pass-through stream broke mid-flight")
			return
		}
	}
}

func respondError(c *gin.Context, apiErr *apperrors.APIError) {
	if apiErr.HTTPStatus == http.StatusTooManyRequests {
		if sec := upstream.RetryAfterSeconds(apiErr); sec > 0 {
			c.Header("Retry-After", strconv.Itoa(sec))
		}
	}
	payload, err := apiErr.ToJSON(apperrors.FormatGemini)
	if err != nil {
		c.JSON(apiErr.HTTPStatus, gin.H{"error": gin.H{"message": apiErr.Message}})
		return
	}
	c.Data(apiErr.HTTPStatus, "application/json", payload)
}
