// Package session holds the conversational session the state machine owns:
// a stable id, a correlation id renewed on each wake, and the append-only
// turn history truncated only at prompt-build time.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one (user utterance, assistant response) pair.
type Turn struct {
	UserQuery         string
	AssistantResponse string
}

// Session is the single active conversation. Construct with New; there is
// at most one active Session at a time, owned exclusively by the state
// machine.
type Session struct {
	mu            sync.RWMutex
	id            string
	correlationID string
	createdAt     time.Time
	history       []Turn
}

// New creates a fresh session with a new id and correlation id.
func New() *Session {
	return &Session{
		id:            uuid.NewString(),
		correlationID: uuid.NewString(),
		createdAt:     time.Now(),
	}
}

// ID returns the stable session id, unchanged for the session's lifetime.
func (s *Session) ID() string {
	return s.id
}

// CorrelationID returns the current correlation id.
func (s *Session) CorrelationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.correlationID
}

// RenewCorrelationID generates a fresh correlation id, called at each
// wake-word detection, and returns it.
func (s *Session) RenewCorrelationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.correlationID = uuid.NewString()
	return s.correlationID
}

// CreatedAt returns the session creation timestamp.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// AddTurn appends a completed turn to history. History is append-only;
// truncation happens only in History(), not here.
func (s *Session) AddTurn(userQuery, assistantResponse string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{UserQuery: userQuery, AssistantResponse: assistantResponse})
}

// History returns a copy of the conversation history, truncated to at most
// maxTurns most-recent turns. maxTurns <= 0 means unlimited.
func (s *Session) History(maxTurns int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history
	if maxTurns > 0 && len(h) > maxTurns {
		h = h[len(h)-maxTurns:]
	}
	out := make([]Turn, len(h))
	copy(out, h)
	return out
}

// Len returns the full, untruncated history length.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Clear empties the conversation history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
