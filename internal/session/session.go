// Package session holds the live, in-memory conversational state for
// each user and serializes turns per user.
package session

import (
	"sync"
	"time"

	"github.com/emberworks/npchat/internal/memory"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversational history entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the live conversational state for one user identifier.
// Callers obtain it through Manager.Acquire, which returns it with its
// lock held; all reads and mutations happen under that lock.
type Session struct {
	mu sync.Mutex

	ID     string
	UserID string

	History []Turn
	Facts   *memory.FactBuffer

	// Persisted is the memory rehydrated from the store on first use.
	Persisted string
	Hydrated  bool

	StartedAt      time.Time
	LastActivityAt time.Time

	maxHistoryTurns int
}

// Append records turns in order and trims the oldest entries beyond
// the history cap.
func (s *Session) Append(turns ...Turn) {
	s.History = append(s.History, turns...)
	if s.maxHistoryTurns > 0 && len(s.History) > s.maxHistoryTurns {
		s.History = append(s.History[:0], s.History[len(s.History)-s.maxHistoryTurns:]...)
	}
	s.LastActivityAt = time.Now().UTC()
}

// Release unlocks the session after a turn is finished.
func (s *Session) Release() { s.mu.Unlock() }
