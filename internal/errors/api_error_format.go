package errors

import (
	"encoding/json"
	"net/http"
)

func (e *APIError) ToJSON(format ErrorFormat) ([]byte, error) {
	switch format {
	case FormatGemini:
		return e.toGeminiJSON()
	default:
		return e.toOpenAIJSON()
	}
}

func (e *APIError) toOpenAIJSON() ([]byte, error) {
	errObj := OpenAIError{}
	errObj.Error.Message = e.Message
	errObj.Error.Type = e.Type
	errObj.Error.Code = e.Code
	if e.Details != nil {
		errObj.Error.Details = e.Details
	}
	return json.Marshal(errObj)
}

func (e *APIError) toGeminiJSON() ([]byte, error) {
	errObj := GeminiError{}
	errObj.Error.Code = e.HTTPStatus
	errObj.Error.Message = e.Message
	errObj.Error.Status = e.toGeminiStatus()
	if e.Details != nil {
		errObj.Error.Details = e.Details
	}
	return json.Marshal(errObj)
}

func (e *APIError) toGeminiStatus() string {
	switch e.HTTPStatus {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusInternalServerError:
		return "INTERNAL"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

func New(httpStatus int, code, errType, message string) *APIError {
	return &APIError{HTTPStatus: httpStatus, Code: code, Type: errType, Message: message}
}

// NewKind builds an APIError for a classified upstream outcome.
func NewKind(kind Kind, httpStatus int, message string) *APIError {
	e := &APIError{HTTPStatus: httpStatus, Kind: kind, Message: message}
	switch kind {
	case KindAuthRejected:
		e.Code, e.Type = "invalid_api_key", "authentication_error"
	case KindQuotaExceeded:
		e.Code, e.Type = "rate_limit_exceeded", "rate_limit_error"
	case KindTransientUpstream:
		e.Code, e.Type = "upstream_error", "server_error"
	case KindBadRequest:
		e.Code, e.Type = "invalid_request_error", "invalid_request_error"
	case KindModelNotFound:
		e.Code, e.Type = "model_not_found", "invalid_request_error"
	case KindContentFiltered:
		e.Code, e.Type = "content_filtered", "invalid_request_error"
	default:
		e.Code, e.Type = "unknown_error", "server_error"
	}
	return e
}

func (e *APIError) WithDetails(details map[string]interface{}) *APIError {
	e.Details = details
	return e
}
