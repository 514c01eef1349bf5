package translator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// NewCompletionID returns an OpenAI-style completion identifier.
func NewCompletionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// BlockReason returns the prompt-level safety block reason, or "" when
// the prompt was not blocked.
func BlockReason(body []byte) string {
	return gjson.GetBytes(body, "promptFeedback.blockReason").String()
}

// BlockedCompletion builds the completion returned when the upstream
// blocks the prompt itself: an empty assistant message finished with
// content_filter, served as a normal 200.
func BlockedCompletion(model, id string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"id":      id,
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{{
			"index": 0,
			"message": map[string]interface{}{
				"role":    "assistant",
				"content": "",
			},
			"finish_reason": "content_filter",
		}},
		"usage": map[string]interface{}{
			"prompt_tokens":     0,
			"completion_tokens": 0,
			"total_tokens":      0,
		},
	})
	return b
}

// GeminiToOpenAIResponse converts a non-streaming generateContent
// response into an OpenAI chat completion object.
func GeminiToOpenAIResponse(model, id string, body []byte) ([]byte, error) {
	result := gjson.ParseBytes(body)

	choices := []map[string]interface{}{}
	for idx, candidate := range result.Get("candidates").Array() {
		var text strings.Builder
		var toolCalls []map[string]interface{}

		for _, part := range candidate.Get("content.parts").Array() {
			if t := part.Get("text"); t.Exists() {
				text.WriteString(t.String())
			}
			if fn := part.Get("functionCall"); fn.Exists() {
				toolCalls = append(toolCalls, map[string]interface{}{
					"id":   fmt.Sprintf("call_%s", uuid.NewString()[:8]),
					"type": "function",
					"function": map[string]interface{}{
						"name":      fn.Get("name").String(),
						"arguments": functionArgs(fn.Get("args")),
					},
				})
			}
		}

		message := map[string]interface{}{
			"role":    "assistant",
			"content": text.String(),
		}
		if len(toolCalls) > 0 {
			message["tool_calls"] = toolCalls
		}

		choices = append(choices, map[string]interface{}{
			"index":         idx,
			"message":       message,
			"finish_reason": finishReason(candidate.Get("finishReason").String(), len(toolCalls) > 0),
		})
	}

	response := map[string]interface{}{
		"id":      id,
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": choices,
		"usage":   usageFrom(result.Get("usageMetadata")),
	}
	return json.Marshal(response)
}

// functionArgs serializes a functionCall args object to the string form
// OpenAI clients expect.
func functionArgs(args gjson.Result) string {
	if !args.Exists() {
		return "{}"
	}
	b, err := json.Marshal(args.Value())
	if err != nil {
		return args.Raw
	}
	return string(b)
}

// finishReason maps upstream finish reasons onto OpenAI's enum. A
// function call always reports tool_calls regardless of the upstream
// reason.
func finishReason(upstream string, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_calls"
	}
	switch upstream {
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return "content_filter"
	default:
		return "stop"
	}
}

func usageFrom(usage gjson.Result) map[string]interface{} {
	prompt := usage.Get("promptTokenCount").Int()
	completion := usage.Get("candidatesTokenCount").Int()
	total := usage.Get("totalTokenCount").Int()
	if total == 0 {
		total = prompt + completion
	}
	return map[string]interface{}{
		"prompt_tokens":     prompt,
		"completion_tokens": completion,
		"total_tokens":      total,
	}
}
