package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberworks/npchat/internal/memory"
)

// Manager owns all live sessions, keyed by user identifier. Sessions
// have no automatic expiry: they live until the process restarts or
// the session is explicitly closed.
//
// The manager mutex only guards the session map. Each session carries
// its own lock, acquired for the duration of a full chat turn
// (provider call included), so a slow turn for one user never blocks
// other users and concurrent turns for the same user apply in some
// serial order with no lost updates.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	maxFacts        int
	maxHistoryTurns int
}

func NewManager(maxFacts, maxHistoryTurns int) *Manager {
	return &Manager{
		sessions:        make(map[string]*Session),
		maxFacts:        maxFacts,
		maxHistoryTurns: maxHistoryTurns,
	}
}

// Acquire returns the session for userID with its lock held, creating
// it on first use. The caller must Release it when the turn finishes.
func (m *Manager) Acquire(userID string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		now := time.Now().UTC()
		s = &Session{
			ID:              uuid.NewString(),
			UserID:          userID,
			Facts:           memory.NewFactBuffer(m.maxFacts),
			StartedAt:       now,
			LastActivityAt:  now,
			maxHistoryTurns: m.maxHistoryTurns,
		}
		m.sessions[userID] = s
	}
	m.mu.Unlock()

	s.mu.Lock()
	return s
}

// Peek returns the live session for userID with its lock held, or nil
// when the user has no live session. It never creates one.
func (m *Manager) Peek(userID string) *Session {
	m.mu.Lock()
	s := m.sessions[userID]
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	s.mu.Lock()
	return s
}

// Remove drops the session from the live map and releases its lock.
// The caller must hold the session via Acquire or Peek. A turn racing
// with Remove may still finish against the detached session; its
// mutations are discarded with the session, which matches the
// last-writer-wins contract of session closure.
func (m *Manager) Remove(s *Session) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.UserID]; ok && cur == s {
		delete(m.sessions, s.UserID)
	}
	m.mu.Unlock()
	s.mu.Unlock()
}

// ActiveCount reports the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
