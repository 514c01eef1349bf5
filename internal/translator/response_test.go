package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestResponseTextCandidate(t *testing.T) {
	body := []byte(`{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "world"}]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 4, "totalTokenCount": 16}
	}`)

	out, err := GeminiToOpenAIResponse("gpt-4", "chatcmpl-test", body)
	require.NoError(t, err)

	res := gjson.ParseBytes(out)
	require.Equal(t, "chatcmpl-test", res.Get("id").String())
	require.Equal(t, "chat.completion", res.Get("object").String())
	require.Equal(t, "gpt-4", res.Get("model").String())
	require.Equal(t, "assistant", res.Get("choices.0.message.role").String())
	require.Equal(t, "Hello world", res.Get("choices.0.message.content").String())
	require.Equal(t, "stop", res.Get("choices.0.finish_reason").String())
	require.Equal(t, int64(12), res.Get("usage.prompt_tokens").Int())
	require.Equal(t, int64(16), res.Get("usage.total_tokens").Int())
}

func TestResponseFinishReasons(t *testing.T) {
	cases := map[string]string{
		"STOP":       "stop",
		"MAX_TOKENS": "length",
		"SAFETY":     "content_filter",
		"RECITATION": "content_filter",
		"BLOCKLIST":  "content_filter",
		"OTHER":      "stop",
	}
	for upstream, want := range cases {
		body := []byte(`{"candidates":[{"content":{"parts":[{"text":"x"}]},"finishReason":"` + upstream + `"}]}`)
		out, err := GeminiToOpenAIResponse("m", "id", body)
		require.NoError(t, err)
		require.Equal(t, want, gjson.GetBytes(out, "choices.0.finish_reason").String(), upstream)
	}
}

func TestResponseFunctionCall(t *testing.T) {
	body := []byte(`{
		"candidates": [{
			"content": {"parts": [
				{"functionCall": {"name": "get_weather", "args": {"city": "Paris"}}}
			]},
			"finishReason": "STOP"
		}]
	}`)

	out, err := GeminiToOpenAIResponse("gpt-4", "id", body)
	require.NoError(t, err)

	res := gjson.ParseBytes(out)
	require.Equal(t, "tool_calls", res.Get("choices.0.finish_reason").String())

	tc := res.Get("choices.0.message.tool_calls.0")
	require.Equal(t, "function", tc.Get("type").String())
	require.Equal(t, "get_weather", tc.Get("function.name").String())
	require.True(t, strings.HasPrefix(tc.Get("id").String(), "call_"))

	args := gjson.Parse(tc.Get("function.arguments").String())
	require.Equal(t, "Paris", args.Get("city").String())
}

func TestResponseMultipleCandidates(t *testing.T) {
	body := []byte(`{
		"candidates": [
			{"content": {"parts": [{"text": "a"}]}, "finishReason": "STOP"},
			{"content": {"parts": [{"text": "b"}]}, "finishReason": "MAX_TOKENS"}
		]
	}`)

	out, err := GeminiToOpenAIResponse("m", "id", body)
	require.NoError(t, err)

	choices := gjson.GetBytes(out, "choices").Array()
	require.Len(t, choices, 2)
	require.Equal(t, int64(0), choices[0].Get("index").Int())
	require.Equal(t, int64(1), choices[1].Get("index").Int())
	require.Equal(t, "length", choices[1].Get("finish_reason").String())
}

func TestBlockReason(t *testing.T) {
	body := []byte(`{"promptFeedback": {"blockReason": "SAFETY"}}`)
	require.Equal(t, "SAFETY", BlockReason(body))
	require.Empty(t, BlockReason([]byte(`{"candidates": []}`)))
}
