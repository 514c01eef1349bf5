package openai

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"gemini-adapter-go/internal/cache"
	apperrors "gemini-adapter-go/internal/errors"
	"gemini-adapter-go/internal/logging"
	"gemini-adapter-go/internal/models"
	"gemini-adapter-go/internal/translator"
	"gemini-adapter-go/internal/upstream"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Handler serves the OpenAI-compatible surface.
type Handler struct {
	dispatcher *upstream.Dispatcher
	resolver   *models.Resolver
	cache      *cache.ResponseCache // nil when caching is disabled
}

func NewHandler(dispatcher *upstream.Dispatcher, resolver *models.Resolver, respCache *cache.ResponseCache) *Handler {
	return &Handler{dispatcher: dispatcher, resolver: resolver, cache: respCache}
}

// ChatCompletions handles POST /v1/chat/completions, streaming and not.
func (h *Handler) ChatCompletions(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, apperrors.NewKind(apperrors.KindBadRequest, http.StatusBadRequest, "Failed to read request body"))
		return
	}
	if !gjson.ValidBytes(rawBody) {
		respondError(c, apperrors.NewKind(apperrors.KindBadRequest, http.StatusBadRequest, "Request body is not valid JSON"))
		return
	}

	clientModel := gjson.GetBytes(rawBody, "model").String()
	upstreamModel := h.resolver.Resolve(clientModel)

	geminiBody, err := translator.OpenAIToGeminiRequest(rawBody)
	if err != nil {
		respondError(c, apperrors.NewKind(apperrors.KindBadRequest, http.StatusBadRequest, err.Error()))
		return
	}

	if gjson.GetBytes(rawBody, "stream").Bool() {
		h.streamCompletion(c, clientModel, upstreamModel, geminiBody)
		return
	}
	h.completion(c, rawBody, clientModel, upstreamModel, geminiBody)
}

func (h *Handler) completion(c *gin.Context, rawBody []byte, clientModel, upstreamModel string, geminiBody []byte) {
	compute := func(ctx context.Context) ([]byte, *apperrors.APIError) {
		body, apiErr := h.dispatcher.Execute(ctx, upstreamModel, geminiBody)
		if apiErr != nil {
			return nil, apiErr
		}
		if reason := translator.BlockReason(body); reason != "" {
			// Blocked prompts surface as a normal completion with
			// finish_reason=content_filter, never as an HTTP error.
			log.WithField("block_reason", reason).Info("prompt blocked by safety filters")
			return translator.BlockedCompletion(clientModel, translator.NewCompletionID()), nil
		}
		converted, convErr := translator.GeminiToOpenAIResponse(clientModel, translator.NewCompletionID(), body)
		if convErr != nil {
			return nil, apperrors.NewKind(apperrors.KindTransientUpstream, http.StatusBadGateway,
				"Failed to convert upstream response")
		}
		return converted, nil
	}

	var payload []byte
	var apiErr *apperrors.APIError

	if h.cache != nil && cache.Eligible(rawBody) {
		// Keyed on the client's model name, not the resolved one: the
		// cached payload echoes the requested model, so two aliases of
		// the same upstream model must not share an entry.
		key, fpErr := cache.Fingerprint(clientModel, geminiBody)
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

func (h *Handler) streamCompletion(c *gin.Context, clientModel, upstreamModel string, geminiBody []byte) {
	result, release, apiErr := h.dispatcher.ExecuteStream(c.Request.Context(), upstreamModel, geminiBody)
	if apiErr != nil {
		respondError(c, apiErr)
		return
	}
	defer release()
	defer result.Body.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, _ := c.Writer.(http.Flusher)
	tr := translator.NewStreamTranslator(clientModel)
	scanner := upstream.NewSSEScanner(result.Body)

	writeChunk := func(payload []byte) bool {
		if _, err := c.Writer.Write([]byte("data: ")); err != nil {
			return false
		}
		if _, err := c.Writer.Write(payload); err != nil {
			return false
		}
		if _, err := c.Writer.Write([]byte("\n\n")); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	for {
		raw, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The stream is committed; surface the failure in-band.
			logging.WithReq(c, log.Fields{"completion_id": tr.ID()}).
				WithError(err).Warn("upstream stream broke mid-flight")
			writeChunk(tr.ErrorChunk("Upstream stream interrupted"))
			return
		}
		chunks, trErr := tr.Translate(raw)
		if trErr != nil {
			logging.WithReq(c, log.Fields{"completion_id": tr.ID()}).
				WithError(trErr).Warn("upstream stream reported error")
			writeChunk(tr.ErrorChunk(trErr.Error()))
			return
		}
		for _, chunk := range chunks {
			if !writeChunk(chunk) {
				return // client went away
			}
		}
	}

	if _, err := c.Writer.Write([]byte("data: [DONE]\n\n")); err == nil && flusher != nil {
		flusher.Flush()
	}
}

func respondError(c *gin.Context, apiErr *apperrors.APIError) {
	if apiErr.HTTPStatus == http.StatusTooManyRequests {
		if sec := upstream.RetryAfterSeconds(apiErr); sec > 0 {
			c.Header("Retry-After", strconv.Itoa(sec))
		}
	}
	payload, err := apiErr.ToJSON(apperrors.FormatOpenAI)
	if err != nil {
		c.JSON(apiErr.HTTPStatus, gin.H{"error": gin.H{"message": apiErr.Message}})
		return
	}
	c.Data(apiErr.HTTPStatus, "application/json", payload)
}
