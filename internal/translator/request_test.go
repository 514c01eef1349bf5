package translator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestRequestBasicConversation(t *testing.T) {
	in := []byte(`{
		"model": "gpt-4",
		"messages": [
			{"role": "system", "content": "Be brief."},
			{"role": "system", "content": "Answer in English."},
			{"role": "user", "content": "Hello"},
			{"role": "assistant", "content": "Hi there"},
			{"role": "user", "content": "How are you?"}
		],
		"temperature": 0.7,
		"max_tokens": 256
	}`)

	out, err := OpenAIToGeminiRequest(in)
	require.NoError(t, err)

	res := gjson.ParseBytes(out)
	require.Equal(t, "Be brief.\nAnswer in English.", res.Get("systemInstruction.parts.0.text").String())

	contents := res.Get("contents").Array()
	require.Len(t, contents, 3)
	require.Equal(t, "user", contents[0].Get("role").String())
	require.Equal(t, "Hello", contents[0].Get("parts.0.text").String())
	require.Equal(t, "model", contents[1].Get("role").String())
	require.Equal(t, "user", contents[2].Get("role").String())

	require.Equal(t, 0.7, res.Get("generationConfig.temperature").Float())
	require.Equal(t, int64(256), res.Get("generationConfig.maxOutputTokens").Int())
	// The model name never travels in the body.
	require.False(t, res.Get("model").Exists())
}

func TestRequestMergesConsecutiveSameRole(t *testing.T) {
	in := []byte(`{
		"messages": [
			{"role": "user", "content": "first"},
			{"role": "user", "content": "second"}
		]
	}`)

	out, err := OpenAIToGeminiRequest(in)
	require.NoError(t, err)

	contents := gjson.GetBytes(out, "contents").Array()
	require.Len(t, contents, 1)
	parts := contents[0].Get("parts").Array()
	require.Len(t, parts, 2)
	require.Equal(t, "first", parts[0].Get("text").String())
	require.Equal(t, "second", parts[1].Get("text").String())
}

func TestRequestToolMessageBecomesFunctionResponse(t *testing.T) {
	in := []byte(`{
		"messages": [
			{"role": "user", "content": "weather?"},
			{"role": "assistant", "tool_calls": [
				{"id": "call_1", "type": "function",
				 "function": {"name": "get_weather", "arguments": "{\"city\":\"Paris\"}"}}
			]},
			{"role": "tool", "tool_call_id": "call_1", "name": "get_weather",
			 "content": "{\"temp_c\": 21}"}
		]
	}`)

	out, err := OpenAIToGeminiRequest(in)
	require.NoError(t, err)

	contents := gjson.GetBytes(out, "contents").Array()
	require.Len(t, contents, 3)

	fnCall := contents[1].Get("parts.0.functionCall")
	require.Equal(t, "get_weather", fnCall.Get("name").String())
	require.Equal(t, "Paris", fnCall.Get("args.city").String())

	require.Equal(t, "user", contents[2].Get("role").String())
	fnResp := contents[2].Get("parts.0.functionResponse")
	require.Equal(t, "get_weather", fnResp.Get("name").String())
	require.Equal(t, int64(21), fnResp.Get("response.temp_c").Int())
}

func TestRequestNonJSONToolResultWrapped(t *testing.T) {
	in := []byte(`{
		"messages": [
			{"role": "user", "content": "q"},
			{"role": "tool", "name": "lookup", "content": "plain text answer"}
		]
	}`)

	out, err := OpenAIToGeminiRequest(in)
	require.NoError(t, err)

	// The tool turn folds into the adjacent user turn, so the wrapped
	// response lands as a second part of the first content entry.
	contents := gjson.GetBytes(out, "contents").Array()
	require.Len(t, contents, 1)
	resp := contents[0].Get("parts.1.functionResponse.response")
	require.Equal(t, "plain text answer", resp.Get("result").String())
}

func TestRequestToolDeclarations(t *testing.T) {
	in := []byte(`{
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [{
			"type": "function",
			"function": {
				"name": "get_weather",
				"description": "Look up weather",
				"parameters": {
					"type": "object",
					"properties": {
						"city": {"type": "string"},
						"days": {"type": "integer"}
					},
					"required": ["city"]
				}
			}
		}],
		"tool_choice": {"type": "function", "function": {"name": "get_weather"}}
	}`)

	out, err := OpenAIToGeminiRequest(in)
	require.NoError(t, err)

	decl := gjson.GetBytes(out, "tools.0.functionDeclarations.0")
	require.Equal(t, "get_weather", decl.Get("name").String())
	require.Equal(t, "OBJECT", decl.Get("parameters.type").String())
	require.Equal(t, "STRING", decl.Get("parameters.properties.city.type").String())
	require.Equal(t, "INTEGER", decl.Get("parameters.properties.days.type").String())

	fcc := gjson.GetBytes(out, "toolConfig.functionCallingConfig")
	require.Equal(t, "ANY", fcc.Get("mode").String())
	require.Equal(t, "get_weather", fcc.Get("allowed_function_names.0").String())
}

func TestRequestToolChoiceStrings(t *testing.T) {
	for choice, mode := range map[string]string{
		"none":     "NONE",
		"auto":     "AUTO",
		"required": "ANY",
	} {
		in := []byte(`{
			"messages": [{"role": "user", "content": "hi"}],
			"tool_choice": "` + choice + `"
		}`)
		out, err := OpenAIToGeminiRequest(in)
		require.NoError(t, err)
		require.Equal(t, mode,
			gjson.GetBytes(out, "toolConfig.functionCallingConfig.mode").String(),
			"tool_choice=%s", choice)
	}
}

func TestRequestStopSequences(t *testing.T) {
	in := []byte(`{
		"messages": [{"role": "user", "content": "hi"}],
		"stop": ["END", "STOP"]
	}`)
	out, err := OpenAIToGeminiRequest(in)
	require.NoError(t, err)

	seqs := gjson.GetBytes(out, "generationConfig.stopSequences").Array()
	require.Len(t, seqs, 2)
	require.Equal(t, "END", seqs[0].String())
}

func TestRequestTopKAndJSONMode(t *testing.T) {
	in := []byte(`{
		"messages": [{"role": "user", "content": "hi"}],
		"top_k": 40,
		"response_format": {"type": "json_object"}
	}`)
	out, err := OpenAIToGeminiRequest(in)
	require.NoError(t, err)

	require.Equal(t, int64(40), gjson.GetBytes(out, "generationConfig.topK").Int())
	require.Equal(t, "application/json", gjson.GetBytes(out, "generationConfig.responseMimeType").String())
}

func TestRequestMultiPartUserContent(t *testing.T) {
	in := []byte(`{
		"messages": [{"role": "user", "content": [
			{"type": "text", "text": "what is this?"},
			{"type": "image_url", "image_url": {"url": "data:image/png;base64,aGVsbG8="}}
		]}]
	}`)

	out, err := OpenAIToGeminiRequest(in)
	require.NoError(t, err)

	parts := gjson.GetBytes(out, "contents.0.parts").Array()
	require.Len(t, parts, 2)
	require.Equal(t, "what is this?", parts[0].Get("text").String())
	require.Equal(t, "image/png", parts[1].Get("inlineData.mimeType").String())
	require.Equal(t, "aGVsbG8=", parts[1].Get("inlineData.data").String())
}

func TestRequestRejectsEmptyOrInvalid(t *testing.T) {
	_, err := OpenAIToGeminiRequest([]byte(`{"messages": []}`))
	require.Error(t, err)

	_, err = OpenAIToGeminiRequest([]byte(`{}`))
	require.Error(t, err)

	_, err = OpenAIToGeminiRequest([]byte(`{"messages": [{"role": "robot", "content": "hi"}]}`))
	require.Error(t, err)
}
