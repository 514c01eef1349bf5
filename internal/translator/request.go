package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// OpenAIToGeminiRequest converts an OpenAI chat completions request body
// to a Gemini generateContent body. The model field is resolved by the
// caller and never carried in the output body.
func OpenAIToGeminiRequest(rawJSON []byte) ([]byte, error) {
	messages := gjson.GetBytes(rawJSON, "messages")
	if !messages.Exists() || !messages.IsArray() || len(messages.Array()) == 0 {
		return nil, fmt.Errorf("messages must be a non-empty array")
	}

	out := `{"contents":[]}`

	contents, system, err := translateMessages(messages)
	if err != nil {
		return nil, err
	}
	contents = mergeConsecutiveMessages(contents)
	if len(contents) == 0 {
		return nil, fmt.Errorf("messages contain no user or assistant content")
	}

	contentsJSON, _ := json.Marshal(contents)
	out, _ = sjson.SetRaw(out, "contents", string(contentsJSON))

	if system != "" {
		sysJSON, _ := json.Marshal(map[string]interface{}{
			"parts": []interface{}{map[string]interface{}{"text": system}},
		})
		out, _ = sjson.SetRaw(out, "systemInstruction", string(sysJSON))
	}

	if genConfig := buildGenerationConfig(rawJSON); len(genConfig) > 0 {
		genJSON, _ := json.Marshal(genConfig)
		out, _ = sjson.SetRaw(out, "generationConfig", string(genJSON))
	}

	out, err = applyTools(out, rawJSON)
	if err != nil {
		return nil, err
	}

	return []byte(out), nil
}

// translateMessages folds the OpenAI role model into Gemini's two-role
// model: assistant becomes model, tool results become user turns with a
// functionResponse part, and system messages are collected separately.
func translateMessages(messages gjson.Result) ([]interface{}, string, error) {
	var contents []interface{}
	var system []string

	for _, msg := range messages.Array() {
		role := msg.Get("role").String()
		content := msg.Get("content")

		switch role {
		case "system":
			system = append(system, contentText(content))

		case "user":
			contents = append(contents, map[string]interface{}{
				"role":  "user",
				"parts": contentParts(content),
			})

		case "assistant":
			var parts []interface{}
			if text := contentText(content); text != "" {
				parts = append(parts, map[string]interface{}{"text": text})
			}
			for _, tc := range msg.Get("tool_calls").Array() {
				if tc.Get("type").String() != "function" {
					continue
				}
				var args interface{}
				rawArgs := tc.Get("function.arguments").String()
				if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
					args = map[string]interface{}{}
				}
				parts = append(parts, map[string]interface{}{
					"functionCall": map[string]interface{}{
						"name": tc.Get("function.name").String(),
						"args": args,
					},
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, map[string]interface{}{
				"role":  "model",
				"parts": parts,
			})

		case "tool":
			var response interface{}
			text := contentText(content)
			if err := json.Unmarshal([]byte(text), &response); err != nil {
				response = map[string]interface{}{"result": text}
			}
			contents = append(contents, map[string]interface{}{
				"role": "user",
				"parts": []interface{}{map[string]interface{}{
					"functionResponse": map[string]interface{}{
						"name":     msg.Get("name").String(),
						"response": response,
					},
				}},
			})

		default:
			return nil, "", fmt.Errorf("unsupported message role %q", role)
		}
	}

	return contents, strings.Join(system, "\n"), nil
}

// contentText flattens string or multi-part content to plain text.
func contentText(content gjson.Result) string {
	if content.IsArray() {
		var sb strings.Builder
		for _, part := range content.Array() {
			if part.Get("type").String() == "text" {
				sb.WriteString(part.Get("text").String())
			}
		}
		return sb.String()
	}
	return content.String()
}

func contentParts(content gjson.Result) []interface{} {
	if content.IsArray() {
		var parts []interface{}
		for _, part := range content.Array() {
			switch part.Get("type").String() {
			case "text":
				parts = append(parts, map[string]interface{}{"text": part.Get("text").String()})
			case "image_url":
				parts = append(parts, convertImagePart(part))
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return []interface{}{map[string]interface{}{"text": content.String()}}
}

func convertImagePart(part gjson.Result) interface{} {
	imageURL := part.Get("image_url.url").String()
	if strings.HasPrefix(imageURL, "data:") {
		if split := strings.SplitN(imageURL, ",", 2); len(split) == 2 {
			mime := "image/jpeg"
			if meta := strings.TrimPrefix(split[0], "data:"); meta != "" {
				if semi := strings.Index(meta, ";"); semi > 0 {
					mime = meta[:semi]
				}
			}
			return map[string]interface{}{
				"inlineData": map[string]interface{}{
					"mimeType": mime,
					"data":     split[1],
				},
			}
		}
	}
	return map[string]interface{}{
		"fileData": map[string]interface{}{"fileUri": imageURL},
	}
}

// mergeConsecutiveMessages collapses adjacent same-role turns, which the
// upstream rejects, by concatenating their parts in order.
func mergeConsecutiveMessages(contents []interface{}) []interface{} {
	if len(contents) <= 1 {
		return contents
	}
	merged := make([]interface{}, 0, len(contents))
	for _, item := range contents {
		msg := item.(map[string]interface{})
		if len(merged) > 0 {
			prev := merged[len(merged)-1].(map[string]interface{})
			if prev["role"] == msg["role"] {
				prev["parts"] = append(prev["parts"].([]interface{}), msg["parts"].([]interface{})...)
				continue
			}
		}
		merged = append(merged, msg)
	}
	return merged
}

func buildGenerationConfig(rawJSON []byte) map[string]interface{} {
	genConfig := make(map[string]interface{})

	if temp := gjson.GetBytes(rawJSON, "temperature"); temp.Exists() {
		genConfig["temperature"] = temp.Value()
	}
	if topP := gjson.GetBytes(rawJSON, "top_p"); topP.Exists() {
		genConfig["topP"] = topP.Value()
	}
	if topK := gjson.GetBytes(rawJSON, "top_k"); topK.Exists() {
		genConfig["topK"] = int(topK.Int())
	}
	maxTokens := gjson.GetBytes(rawJSON, "max_tokens")
	if mct := gjson.GetBytes(rawJSON, "max_completion_tokens"); mct.Exists() {
		maxTokens = mct
	}
	if maxTokens.Exists() && maxTokens.Int() > 0 {
		genConfig["maxOutputTokens"] = int(maxTokens.Int())
	}
	if n := gjson.GetBytes(rawJSON, "n"); n.Exists() && n.Int() > 1 {
		genConfig["candidateCount"] = int(n.Int())
	}
	if seed := gjson.GetBytes(rawJSON, "seed"); seed.Exists() {
		genConfig["seed"] = int(seed.Int())
	}
	if fp := gjson.GetBytes(rawJSON, "frequency_penalty"); fp.Exists() {
		genConfig["frequencyPenalty"] = fp.Value()
	}
	if pp := gjson.GetBytes(rawJSON, "presence_penalty"); pp.Exists() {
		genConfig["presencePenalty"] = pp.Value()
	}
	if stop := gjson.GetBytes(rawJSON, "stop"); stop.Exists() {
		if seqs := stopSequences(stop); len(seqs) > 0 {
			genConfig["stopSequences"] = seqs
		}
	}
	if rf := gjson.GetBytes(rawJSON, "response_format.type"); rf.String() == "json_object" {
		genConfig["responseMimeType"] = "application/json"
	}
	return genConfig
}

func stopSequences(stop gjson.Result) []string {
	if stop.IsArray() {
		var seqs []string
		for _, s := range stop.Array() {
			seqs = append(seqs, s.String())
		}
		return seqs
	}
	if s := stop.String(); s != "" {
		return []string{s}
	}
	return nil
}
