package errors

import "fmt"

// ErrorFormat represents the target error envelope format.
type ErrorFormat string

const (
	FormatOpenAI ErrorFormat = "openai"
	FormatGemini ErrorFormat = "gemini"
)

// Kind classifies an upstream outcome for retry and cooling decisions.
type Kind int

const (
	KindOK Kind = iota
	// Retryable kinds: the serving credential is cooled and another one
	// is tried.
	KindAuthRejected
	KindQuotaExceeded
	KindTransientUpstream
	// Terminal kinds: returned to the client verbatim, never retried.
	KindBadRequest
	KindModelNotFound
	KindContentFiltered
)

// Retryable reports whether a failure of this kind should move on to the
// next credential.
func (k Kind) Retryable() bool {
	switch k {
	case KindAuthRejected, KindQuotaExceeded, KindTransientUpstream:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindAuthRejected:
		return "auth_rejected"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTransientUpstream:
		return "transient_upstream"
	case KindBadRequest:
		return "bad_request"
	case KindModelNotFound:
		return "model_not_found"
	case KindContentFiltered:
		return "content_filtered"
	}
	return "unknown"
}

// APIError represents a standardized error across both surfaces.
type APIError struct {
	HTTPStatus int
	Kind       Kind
	Code       string
	Message    string
	Type       string
	Details    map[string]interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// OpenAIError mirrors OpenAI's error envelope.
type OpenAIError struct {
	Error struct {
		Message string                 `json:"message"`
		Type    string                 `json:"type"`
		Code    string                 `json:"code,omitempty"`
		Param   string                 `json:"param,omitempty"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

// GeminiError mirrors the native surface's error structure.
type GeminiError struct {
	Error struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Status  string                 `json:"status"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}
