// Package memory implements the per-user bounded conversation store.
// Conversations are isolated by user id; the enclosing map tolerates
// concurrent turns from different users, and cap enforcement is atomic
// with the append for any single user.
package memory

import (
	"sync"
	"time"

	"deskbot/internal/logging"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message within a conversation. Immutable once created;
// ordering is insertion order.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary describes a conversation without exposing its turns.
type Summary struct {
	TurnCount       int       `json:"message_count"`
	DurationSeconds float64   `json:"duration"`
	FirstTimestamp  time.Time `json:"start_time,omitzero"`
	LastTimestamp   time.Time `json:"last_message_time,omitzero"`
}

// Store is a concurrent user-keyed conversation store. Each conversation
// is capped at maxMessages turns; appending beyond the cap drops the
// oldest turns first.
type Store struct {
	mu            sync.RWMutex
	conversations map[string][]Turn
	maxMessages   int
}

// NewStore creates a store with the given per-conversation cap.
func NewStore(maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	return &Store{
		conversations: make(map[string][]Turn),
		maxMessages:   maxMessages,
	}
}

// Append adds a turn to the user's conversation, creating it on first
// use, and enforces the cap before returning. The conversation length
// never exceeds the cap after any mutation.
func (s *Store) Append(userID string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.conversations[userID], turn)
	if overflow := len(turns) - s.maxMessages; overflow > 0 {
		logging.MemoryDebug("user %s over cap, dropping %d oldest turn(s)", userID, overflow)
		turns = turns[overflow:]
	}
	s.conversations[userID] = turns
}

// Get returns a copy of the user's conversation in insertion order.
// Unknown users yield an empty slice.
func (s *Store) Get(userID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.conversations[userID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Len returns the number of turns stored for a user.
func (s *Store) Len(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations[userID])
}

// Clear removes the user's conversation entirely. Reports whether a
// conversation existed.
func (s *Store) Clear(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[userID]; !ok {
		return false
	}
	delete(s.conversations, userID)
	return true
}

// Users returns the ids with an active conversation.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		out = append(out, id)
	}
	return out
}

// Summarize reports turn count and elapsed duration for a conversation.
// Duration is last-minus-first timestamp when at least two turns exist,
// else zero. Unknown users yield a zero-valued summary.
func (s *Store) Summarize(userID string) Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.conversations[userID]
	if len(turns) == 0 {
		return Summary{}
	}

	sum := Summary{
		TurnCount:      len(turns),
		FirstTimestamp: turns[0].Timestamp,
		LastTimestamp:  turns[len(turns)-1].Timestamp,
	}
	if len(turns) > 1 {
		sum.DurationSeconds = sum.LastTimestamp.Sub(sum.FirstTimestamp).Seconds()
	}
	return sum
}
