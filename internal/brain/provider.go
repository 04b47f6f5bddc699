// Package brain abstracts the completion provider behind a single
// non-streaming request/response interface.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrProvider tags completion failures, timeouts included. Callers
// never retry automatically; the tag tells the HTTP layer the caller
// may retry.
var ErrProvider = errors.New("completion provider failure")

// StatusError carries the upstream HTTP status of a failed provider
// call so callers can tell transient failures from permanent ones.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %v", e.Status, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// UpstreamStatus extracts the upstream HTTP status from a provider
// error, when the provider reported one.
func UpstreamStatus(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

// Message is one prior conversational turn sent to the provider.
type Message struct {
	Role    string
	Content string
}

// Request is a single one-shot completion request. System blocks keep
// their order: persona first, then dynamic context, then remembered
// facts.
type Request struct {
	System    []string
	Messages  []Message
	MaxTokens int
}

type Response struct {
	Text string
}

// Provider produces one completion per request. Implementations must
// honor context cancellation and deadlines.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Config controls provider construction.
type Config struct {
	Mode            string
	AnthropicAPIKey string
	Model           string
}

// NewProvider selects a provider by mode. "auto" picks anthropic when
// an API key is configured and falls back to mock otherwise.
func NewProvider(cfg Config) (Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "anthropic":
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return nil, errors.New("BRAIN_PROVIDER=anthropic but ANTHROPIC_API_KEY is not set")
		}
		return NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.Model), nil
	case "mock":
		return NewMockProvider(), nil
	case "auto":
		if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
			return NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.Model), nil
		}
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported brain provider mode %q", cfg.Mode)
	}
}
