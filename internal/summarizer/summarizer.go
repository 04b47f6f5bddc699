// Package summarizer compresses accumulated player memory through the
// completion provider. Calls are one-shot and synchronous; callers
// decide whether a failure is advisory (save path) or fatal (explicit
// summarize path).
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/emberworks/npchat/internal/brain"
)

// ErrMalformedSummary tags provider output that failed structured
// parsing. It is distinct from a provider failure so callers can tell
// a bad summary from a dead provider.
var ErrMalformedSummary = errors.New("malformed summary")

const (
	textPrompt = "Summarize the following player memory briefly."
	jsonPrompt = "Summarize this player's chat history into a compact JSON object with useful minor facts and persistent preferences. Use concise keys. Respond with the JSON object only."
)

const defaultMaxTokens = 300

// Summarizer produces text or structured summaries with a bounded
// output token budget.
type Summarizer struct {
	provider  brain.Provider
	maxTokens int
}

func New(provider brain.Provider, maxTokens int) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Summarizer{provider: provider, maxTokens: maxTokens}
}

// Summarize returns a free-text summary of content. Empty content
// yields an empty summary without a provider call.
func (s *Summarizer) Summarize(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	resp, err := s.provider.Complete(ctx, brain.Request{
		System:    []string{textPrompt},
		Messages:  []brain.Message{{Role: "user", Content: content}},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// SummarizeJSON returns a structured summary of content, validated as
// a JSON object before it may be persisted.
func (s *Summarizer) SummarizeJSON(ctx context.Context, content string) (json.RawMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	resp, err := s.provider.Complete(ctx, brain.Request{
		System:    []string{jsonPrompt},
		Messages:  []brain.Message{{Role: "user", Content: content}},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	raw := stripFences(resp.Text)
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSummary, err)
	}
	return json.RawMessage(raw), nil
}

// stripFences removes the markdown code fences models sometimes wrap
// around JSON output.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}
