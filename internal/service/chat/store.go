package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/educhain/assistant/backend/internal/model/chat"
)

// Store is the append-only message log of one widget session.
type Store struct {
	mu    sync.RWMutex
	seed  []chat.Turn
	turns []chat.Turn
}

// NewStore creates a log seeded with one assistant greeting, or empty when greeting is blank.
func NewStore(greeting string) *Store {
	s := &Store{}
	if greeting != "" {
		s.seed = []chat.Turn{newTurn(chat.RoleAssistant, greeting)}
	}
	s.turns = s.copySeed()
	return s
}

// Append places turn at the end of the log and returns the resulting log.
// Missing ids and timestamps are filled in.
func (s *Store) Append(turn chat.Turn) []chat.Turn {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return s.snapshotLocked()
}

// Current returns a copy of the log.
func (s *Store) Current() []chat.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of turns in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Reset restores the seed state and returns it.
func (s *Store) Reset() []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = s.copySeed()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []chat.Turn {
	copied := make([]chat.Turn, len(s.turns))
	copy(copied, s.turns)
	return copied
}

func (s *Store) copySeed() []chat.Turn {
	turns := make([]chat.Turn, len(s.seed), len(s.seed)+16)
	copy(turns, s.seed)
	return turns
}

// NewTurn builds a turn stamped with a fresh id and the current time.
func NewTurn(role chat.Role, content string) chat.Turn {
	return newTurn(role, content)
}

func newTurn(role chat.Role, content string) chat.Turn {
	return chat.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
