package session

import (
	"sync"
	"testing"
)

func TestAcquireCreatesOnFirstUse(t *testing.T) {
	m := NewManager(5, 0)
	s := m.Acquire("u1")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if s.UserID != "u1" {
		t.Fatalf("UserID = %q, want %q", s.UserID, "u1")
	}
	if s.Facts == nil || s.Facts.Max() != 5 {
		t.Fatalf("fact buffer not initialized with cap 5")
	}
	s.Release()

	again := m.Acquire("u1")
	if again.ID != s.ID {
		t.Fatalf("Acquire() created a new session for a live user")
	}
	again.Release()

	if got := m.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", got)
	}
}

func TestPeekDoesNotCreate(t *testing.T) {
	m := NewManager(5, 0)
	if s := m.Peek("ghost"); s != nil {
		t.Fatalf("Peek() created a session")
	}
	if got := m.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", got)
	}
}

func TestRemovePurgesSession(t *testing.T) {
	m := NewManager(5, 0)
	s := m.Acquire("u1")
	s.Append(Turn{Role: RoleUser, Content: "hi"})
	m.Remove(s)

	if got := m.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount() after Remove = %d, want 0", got)
	}
	fresh := m.Acquire("u1")
	defer fresh.Release()
	if fresh.ID == s.ID {
		t.Fatalf("Acquire() after Remove returned the purged session")
	}
	if len(fresh.History) != 0 {
		t.Fatalf("fresh session history = %v, want empty", fresh.History)
	}
}

func TestAppendTrimsToHistoryCap(t *testing.T) {
	m := NewManager(5, 4)
	s := m.Acquire("u1")
	defer s.Release()

	for i := 0; i < 6; i++ {
		s.Append(
			Turn{Role: RoleUser, Content: "q"},
			Turn{Role: RoleAssistant, Content: "a"},
		)
	}
	if len(s.History) != 4 {
		t.Fatalf("history length = %d, want 4", len(s.History))
	}
}

func TestConcurrentTurnsSerializePerUser(t *testing.T) {
	m := NewManager(5, 0)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		msg := "msg-a"
		if i == 1 {
			msg = "msg-b"
		}
		wg.Add(1)
		go func(msg string) {
			defer wg.Done()
			s := m.Acquire("u1")
			defer s.Release()
			s.Append(
				Turn{Role: RoleUser, Content: msg},
				Turn{Role: RoleAssistant, Content: "reply to " + msg},
			)
		}(msg)
	}
	wg.Wait()

	s := m.Acquire("u1")
	defer s.Release()
	if len(s.History) != 4 {
		t.Fatalf("history length = %d, want 4 (both turns committed)", len(s.History))
	}
	counts := map[string]int{}
	for _, turn := range s.History {
		counts[turn.Content]++
	}
	if counts["msg-a"] != 1 || counts["msg-b"] != 1 {
		t.Fatalf("lost or duplicated turn: %v", counts)
	}
	// Turns are interleaved in some serial order: each user message is
	// immediately followed by its reply.
	for i := 0; i < len(s.History); i += 2 {
		if s.History[i].Role != RoleUser || s.History[i+1].Role != RoleAssistant {
			t.Fatalf("turn %d not atomic: %+v", i/2, s.History)
		}
		if s.History[i+1].Content != "reply to "+s.History[i].Content {
			t.Fatalf("reply does not match its message: %+v", s.History)
		}
	}
}
