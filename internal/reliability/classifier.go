// Package reliability maps internal failures onto the wire error
// contract: an HTTP status, a stable machine-readable code, and a hint
// telling the game client whether retrying the request can help.
package reliability

import (
	"context"
	"errors"
	"net/http"

	"github.com/emberworks/npchat/internal/brain"
	"github.com/emberworks/npchat/internal/chat"
	"github.com/emberworks/npchat/internal/storage"
	"github.com/emberworks/npchat/internal/summarizer"
)

// Classification is the wire-facing view of an internal error.
type Classification struct {
	Status    int
	Code      string
	Retryable bool
}

// Classify buckets err into the error contract. Order matters: a
// malformed summary wraps no provider error and must not be reported
// as one, while timeouts bubbling out of a provider call stay retryable.
func Classify(err error) Classification {
	switch {
	case errors.Is(err, chat.ErrValidation), errors.Is(err, storage.ErrInvalidUserID):
		return Classification{Status: http.StatusBadRequest, Code: "invalid_request"}
	case errors.Is(err, chat.ErrSessionNotFound):
		return Classification{Status: http.StatusNotFound, Code: "session_not_found"}
	case errors.Is(err, summarizer.ErrMalformedSummary):
		return Classification{Status: http.StatusInternalServerError, Code: "malformed_summary", Retryable: true}
	case errors.Is(err, brain.ErrProvider):
		c := Classification{Status: http.StatusInternalServerError, Code: "provider_error", Retryable: true}
		if status, ok := brain.UpstreamStatus(err); ok {
			c.Retryable = IsRetryableHTTPStatus(status)
		}
		return c
	case errors.Is(err, context.DeadlineExceeded):
		return Classification{Status: http.StatusInternalServerError, Code: "provider_error", Retryable: true}
	case errors.Is(err, storage.ErrIO):
		return Classification{Status: http.StatusInternalServerError, Code: "io_error", Retryable: true}
	default:
		return Classification{Status: http.StatusInternalServerError, Code: "internal"}
	}
}

// IsRetryableHTTPStatus classifies upstream HTTP status codes worth
// retrying, used when deciding whether a failed provider call should be
// surfaced as transient.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
