package summarizer

import (
	"context"
	"errors"
	"testing"

	"github.com/emberworks/npchat/internal/brain"
)

func TestSummarizeText(t *testing.T) {
	mock := brain.NewMockProvider()
	mock.QueueReply("  player likes pizza and fears caves  ")
	s := New(mock, 300)

	got, err := s.Summarize(context.Background(), "long transcript here")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != "player likes pizza and fears caves" {
		t.Fatalf("Summarize() = %q", got)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(calls))
	}
	if calls[0].MaxTokens != 300 {
		t.Fatalf("MaxTokens = %d, want 300", calls[0].MaxTokens)
	}
}

func TestSummarizeEmptyContentSkipsProvider(t *testing.T) {
	mock := brain.NewMockProvider()
	s := New(mock, 0)

	got, err := s.Summarize(context.Background(), "   ")
	if err != nil || got != "" {
		t.Fatalf("Summarize(empty) = (%q, %v), want empty and nil", got, err)
	}
	if len(mock.Calls()) != 0 {
		t.Fatalf("provider called for empty content")
	}
}

func TestSummarizeWrapsProviderFailure(t *testing.T) {
	mock := brain.NewMockProvider()
	mock.FailWith(errors.New("upstream down"))
	s := New(mock, 300)

	if _, err := s.Summarize(context.Background(), "memory"); !errors.Is(err, brain.ErrProvider) {
		t.Fatalf("Summarize() error = %v, want ErrProvider", err)
	}
	if _, err := s.SummarizeJSON(context.Background(), "memory"); !errors.Is(err, brain.ErrProvider) {
		t.Fatalf("SummarizeJSON() error = %v, want ErrProvider", err)
	}
}

func TestSummarizeJSON(t *testing.T) {
	mock := brain.NewMockProvider()
	mock.QueueReply(`{"likes":"pizza","class":"wizard"}`)
	s := New(mock, 300)

	got, err := s.SummarizeJSON(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("SummarizeJSON() error = %v", err)
	}
	if string(got) != `{"likes":"pizza","class":"wizard"}` {
		t.Fatalf("SummarizeJSON() = %s", got)
	}
}

func TestSummarizeJSONStripsFences(t *testing.T) {
	mock := brain.NewMockProvider()
	mock.QueueReply("```json\n{\"likes\":\"pizza\"}\n```")
	s := New(mock, 300)

	got, err := s.SummarizeJSON(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("SummarizeJSON() error = %v", err)
	}
	if string(got) != `{"likes":"pizza"}` {
		t.Fatalf("SummarizeJSON() = %s", got)
	}
}

func TestSummarizeJSONMalformedIsDistinct(t *testing.T) {
	mock := brain.NewMockProvider()
	mock.QueueReply("Sure! The player likes pizza.")
	s := New(mock, 300)

	_, err := s.SummarizeJSON(context.Background(), "transcript")
	if !errors.Is(err, ErrMalformedSummary) {
		t.Fatalf("SummarizeJSON() error = %v, want ErrMalformedSummary", err)
	}
	if errors.Is(err, brain.ErrProvider) {
		t.Fatalf("malformed summary must not classify as a provider failure")
	}
}
