package translator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// StreamTranslator converts a sequence of generateContent stream chunks
// into OpenAI chat.completion.chunk payloads. The completion id and
// created timestamp stay stable across the whole stream, and the first
// emitted delta carries the assistant role.
type StreamTranslator struct {
	model   string
	id      string
	created int64

	sentRole  bool
	toolIndex int
}

func NewStreamTranslator(model string) *StreamTranslator {
	return &StreamTranslator{
		model:   model,
		id:      NewCompletionID(),
		created: time.Now().Unix(),
	}
}

// ID returns the completion id shared by every emitted chunk.
func (t *StreamTranslator) ID() string { return t.id }

// Translate converts one upstream chunk into zero or more OpenAI chunk
// payloads, JSON only, without SSE framing.
func (t *StreamTranslator) Translate(raw []byte) ([][]byte, error) {
	result := gjson.ParseBytes(raw)

	if errObj := result.Get("error"); errObj.Exists() {
		return nil, fmt.Errorf("upstream stream error: %s", errObj.Get("message").String())
	}

	var out [][]byte
	for _, candidate := range result.Get("candidates").Array() {
		delta := map[string]interface{}{}
		if !t.sentRole {
			delta["role"] = "assistant"
			t.sentRole = true
		}

		hasToolCall := false
		for _, part := range candidate.Get("content.parts").Array() {
			if text := part.Get("text"); text.Exists() && text.String() != "" {
				if existing, ok := delta["content"].(string); ok {
					delta["content"] = existing + text.String()
				} else {
					delta["content"] = text.String()
				}
			}
			if fn := part.Get("functionCall"); fn.Exists() {
				hasToolCall = true
				delta["tool_calls"] = []map[string]interface{}{{
					"index": t.toolIndex,
					"id":    fmt.Sprintf("call_%s", uuid.NewString()[:8]),
					"type":  "function",
					"function": map[string]interface{}{
						"name":      fn.Get("name").String(),
						"arguments": functionArgs(fn.Get("args")),
					},
				}}
				t.toolIndex++
			}
		}

		if len(delta) > 0 {
			out = append(out, t.chunk(delta, nil))
		}

		// The finish marker always travels in its own chunk with an
		// empty delta, after any content from the same upstream chunk.
		if fr := candidate.Get("finishReason"); fr.Exists() && fr.String() != "" {
			out = append(out, t.chunk(map[string]interface{}{}, finishReason(fr.String(), hasToolCall)))
		}
	}
	return out, nil
}

// ErrorChunk builds an in-band error payload for failures after the
// stream has committed; the handler emits it and closes the stream.
func (t *StreamTranslator) ErrorChunk(message string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "server_error",
		},
	})
	return b
}

func (t *StreamTranslator) chunk(delta map[string]interface{}, finish interface{}) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"id":      t.id,
		"object":  "chat.completion.chunk",
		"created": t.created,
		"model":   t.model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"delta":         delta,
			"finish_reason": finish,
		}},
	})
	return b
}
