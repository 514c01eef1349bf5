package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Classify maps an upstream HTTP outcome to a failure kind. A nil error
// with a 2xx status is KindOK; network errors and timeouts count as
// transient unless caused by the caller's own cancellation.
func Classify(statusCode int, body []byte, err error) Kind {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return KindOK // caller cancelled; not an upstream failure
		}
		return KindTransientUpstream
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return KindOK
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return KindAuthRejected
	case statusCode == http.StatusTooManyRequests:
		return KindQuotaExceeded
	case statusCode == http.StatusNotFound:
		return KindModelNotFound
	case statusCode == http.StatusBadRequest:
		// Some quota exhaustion surfaces as 400 with a RESOURCE_EXHAUSTED
		// status in the body.
		if isQuotaBody(body) {
			return KindQuotaExceeded
		}
		return KindBadRequest
	case statusCode >= 500:
		return KindTransientUpstream
	default:
		return KindTransientUpstream
	}
}

func isQuotaBody(body []byte) bool {
	status := gjson.GetBytes(body, "error.status").String()
	if status == "RESOURCE_EXHAUSTED" {
		return true
	}
	msg := strings.ToLower(gjson.GetBytes(body, "error.message").String())
	return strings.Contains(msg, "quota")
}

// MapUpstream builds an APIError for an upstream HTTP failure, carrying a
// bounded excerpt of the upstream body.
func MapUpstream(statusCode int, body []byte, err error) *APIError {
	kind := Classify(statusCode, body, err)
	msg := extractUpstreamMessage(body)
	if msg == "" && err != nil {
		msg = err.Error()
	}
	switch kind {
	case KindAuthRejected:
		return NewKind(kind, http.StatusUnauthorized, firstNonEmpty(msg, "Upstream rejected the credential"))
	case KindQuotaExceeded:
		return NewKind(kind, http.StatusTooManyRequests, firstNonEmpty(msg, "Upstream quota exceeded"))
	case KindModelNotFound:
		return NewKind(kind, http.StatusNotFound, firstNonEmpty(msg, "Model not found"))
	case KindBadRequest:
		return NewKind(kind, http.StatusBadRequest, firstNonEmpty(msg, "Invalid request"))
	default:
		return NewKind(KindTransientUpstream, http.StatusBadGateway,
			firstNonEmpty(msg, fmt.Sprintf("Upstream HTTP %d error", statusCode)))
	}
}

func extractUpstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
		return msg
	}
	msg := string(body)
	if len(msg) > 200 {
		return msg[:200] + "..."
	}
	return msg
}

func firstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}
