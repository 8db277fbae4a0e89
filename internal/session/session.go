// Package session keeps bounded per-session conversation history.
//
// Sessions live for the process lifetime; there is no idle expiry. That
// matches the original system and is deliberately not changed here.
package session

import "sync"

// Turn is a single conversation message.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultHistoryLimit is the number of turns retained per session
// (5 exchanges).
const DefaultHistoryLimit = 10

type state struct {
	mu    sync.Mutex
	turns []Turn
}

// Store holds conversation history keyed by session id. Appends within one
// session are atomic; distinct sessions never block each other.
type Store struct {
	limit int

	mu       sync.RWMutex
	sessions map[string]*state
}

// NewStore creates a Store retaining at most limit turns per session.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Store{
		limit:    limit,
		sessions: make(map[string]*state),
	}
}

// History returns a copy of the retained turns for a session, oldest first.
// Unknown sessions yield an empty history.
func (s *Store) History(sessionID string) []Turn {
	s.mu.RLock()
	st, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Turn, len(st.turns))
	copy(out, st.turns)
	return out
}

// Append records one user/assistant exchange, creating the session on first
// use. When the history exceeds the limit, the oldest turns are dropped.
func (s *Store) Append(sessionID, userText, assistantText string) {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &state{}
		s.sessions[sessionID] = st
	}
	s.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	st.turns = append(st.turns,
		Turn{Role: RoleUser, Content: userText},
		Turn{Role: RoleAssistant, Content: assistantText},
	)
	if len(st.turns) > s.limit {
		kept := make([]Turn, s.limit)
		copy(kept, st.turns[len(st.turns)-s.limit:])
		st.turns = kept
	}
}

// Clear removes a session entirely.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// ActiveSessions returns the number of sessions currently held.
func (s *Store) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Window returns the most recent n turns of the given history, oldest
// first. The generation prompt uses a window shallower than the retained
// history.
func Window(turns []Turn, n int) []Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
