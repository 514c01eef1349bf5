package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Fingerprint derives a stable cache key from the resolved model and the
// upstream request body. The body is canonicalized first so that key
// order and number formatting differences never split the cache.
func Fingerprint(model string, body []byte) (string, error) {
	canonical, err := canonicalJSON(body)
	if err != nil {
		return "", fmt.Errorf("canonicalize request: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON re-serializes a JSON document with object keys sorted
// and numbers in their shortest form; encoding/json provides both when
// round-tripping through interface{}.
func canonicalJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// Eligible reports whether an OpenAI chat request may be served from
// cache: non-streaming, deterministic sampling, and no tools.
func Eligible(rawOpenAI []byte) bool {
	if gjson.GetBytes(rawOpenAI, "stream").Bool() {
		return false
	}
	if temp := gjson.GetBytes(rawOpenAI, "temperature"); temp.Exists() && temp.Float() != 0 {
		return false
	}
	if gjson.GetBytes(rawOpenAI, "tools").Exists() {
		return false
	}
	return true
}

// EligibleNative is the eligibility check for the pass-through surface,
// where sampling lives under generationConfig.
func EligibleNative(rawGemini []byte) bool {
	if temp := gjson.GetBytes(rawGemini, "generationConfig.temperature"); temp.Exists() && temp.Float() != 0 {
		return false
	}
	if gjson.GetBytes(rawGemini, "tools").Exists() {
		return false
	}
	return true
}
