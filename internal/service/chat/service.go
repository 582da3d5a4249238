package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/educhain/assistant/backend/internal/model/chat"
	"github.com/educhain/assistant/backend/internal/model/profile"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRole     = errors.New("invalid turn role")
)

// Service keeps one Store per widget session.
type Service struct {
	profiles     profile.Store
	seedGreeting bool

	mu       sync.RWMutex
	sessions map[string]chat.Session
	stores   map[string]*Store
}

// NewService creates the in-memory session registry. When seedGreeting is set every new
// log starts with the profile greeting.
func NewService(profiles profile.Store, seedGreeting bool) *Service {
	return &Service{
		profiles:     profiles,
		seedGreeting: seedGreeting,
		sessions:     make(map[string]chat.Session),
		stores:       make(map[string]*Store),
	}
}

// CreateSession opens a session for profileID, falling back to the default profile.
func (s *Service) CreateSession(_ context.Context, profileID string) (chat.Session, error) {
	if profileID == "" {
		profileID = profile.DefaultID
	}

	p, ok := s.profiles.FindByID(profileID)
	if !ok {
		return chat.Session{}, ErrProfileNotFound
	}

	greeting := ""
	if s.seedGreeting {
		greeting = p.Greeting
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		ProfileID: p.ID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.stores[session.ID] = NewStore(greeting)
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Profile returns the profile bound to a session.
func (s *Service) Profile(ctx context.Context, sessionID string) (profile.Profile, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return profile.Profile{}, err
	}
	p, ok := s.profiles.FindByID(session.ProfileID)
	if !ok {
		return profile.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

// Store returns the message log of a session.
func (s *Service) Store(sessionID string) (*Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	store, ok := s.stores[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return store, nil
}

// AppendTurn appends a turn to the session log and returns the stored turn.
func (s *Service) AppendTurn(_ context.Context, sessionID string, turn chat.Turn) (chat.Turn, error) {
	if !turn.Role.Valid() {
		return chat.Turn{}, ErrInvalidRole
	}
	store, err := s.Store(sessionID)
	if err != nil {
		return chat.Turn{}, err
	}
	log := store.Append(turn)
	return log[len(log)-1], nil
}

// LoadTranscript returns a copy of the session log.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Turn, error) {
	store, err := s.Store(sessionID)
	if err != nil {
		return nil, err
	}
	return store.Current(), nil
}

// ClearSession resets the session log to its seed state.
func (s *Service) ClearSession(_ context.Context, sessionID string) ([]chat.Turn, error) {
	store, err := s.Store(sessionID)
	if err != nil {
		return nil, err
	}
	return store.Reset(), nil
}

// DeleteSession forgets a session.
func (s *Service) DeleteSession(_ context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	delete(s.stores, sessionID)
	s.mu.Unlock()
}
