package reliability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/emberworks/npchat/internal/brain"
	"github.com/emberworks/npchat/internal/chat"
	"github.com/emberworks/npchat/internal/storage"
	"github.com/emberworks/npchat/internal/summarizer"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{
			name: "validation",
			err:  fmt.Errorf("%w: userId is required", chat.ErrValidation),
			want: Classification{Status: http.StatusBadRequest, Code: "invalid_request"},
		},
		{
			name: "invalid user id",
			err:  fmt.Errorf("save: %w", storage.ErrInvalidUserID),
			want: Classification{Status: http.StatusBadRequest, Code: "invalid_request"},
		},
		{
			name: "session not found",
			err:  fmt.Errorf("%w: u1", chat.ErrSessionNotFound),
			want: Classification{Status: http.StatusNotFound, Code: "session_not_found"},
		},
		{
			name: "malformed summary",
			err:  fmt.Errorf("%w: not an object", summarizer.ErrMalformedSummary),
			want: Classification{Status: http.StatusInternalServerError, Code: "malformed_summary", Retryable: true},
		},
		{
			name: "provider failure",
			err:  fmt.Errorf("%w: connection reset", brain.ErrProvider),
			want: Classification{Status: http.StatusInternalServerError, Code: "provider_error", Retryable: true},
		},
		{
			name: "provider rejected key",
			err: fmt.Errorf("%w: %w", brain.ErrProvider,
				&brain.StatusError{Status: http.StatusUnauthorized, Err: errors.New("invalid x-api-key")}),
			want: Classification{Status: http.StatusInternalServerError, Code: "provider_error", Retryable: false},
		},
		{
			name: "provider overloaded",
			err: fmt.Errorf("%w: %w", brain.ErrProvider,
				&brain.StatusError{Status: http.StatusServiceUnavailable, Err: errors.New("overloaded")}),
			want: Classification{Status: http.StatusInternalServerError, Code: "provider_error", Retryable: true},
		},
		{
			name: "deadline",
			err:  fmt.Errorf("chat: %w", context.DeadlineExceeded),
			want: Classification{Status: http.StatusInternalServerError, Code: "provider_error", Retryable: true},
		},
		{
			name: "store failure",
			err:  fmt.Errorf("%w: disk full", storage.ErrIO),
			want: Classification{Status: http.StatusInternalServerError, Code: "io_error", Retryable: true},
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: Classification{Status: http.StatusInternalServerError, Code: "internal"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = true, want false", code)
		}
	}
}
