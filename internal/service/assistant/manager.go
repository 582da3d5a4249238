package assistant

import (
	"context"
	"sync"

	chatsvc "github.com/educhain/assistant/backend/internal/service/chat"
	"github.com/educhain/assistant/backend/internal/service/completion"
)

// ManagerOptions are applied to every widget the manager builds.
type ManagerOptions struct {
	FramePrompt   bool
	SpeechEnabled bool
}

// Manager hands out one widget per chat session.
type Manager struct {
	sessions  *chatsvc.Service
	completer completion.Completer
	opts      ManagerOptions

	mu      sync.Mutex
	widgets map[string]*Widget
}

// NewManager creates a widget registry over sessions.
func NewManager(sessions *chatsvc.Service, completer completion.Completer, opts ManagerOptions) *Manager {
	return &Manager{
		sessions:  sessions,
		completer: completer,
		opts:      opts,
		widgets:   make(map[string]*Widget),
	}
}

// Widget returns the widget of sessionID, building it on first use.
func (m *Manager) Widget(ctx context.Context, sessionID string) (*Widget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.widgets[sessionID]; ok {
		return w, nil
	}

	store, err := m.sessions.Store(sessionID)
	if err != nil {
		return nil, err
	}
	p, err := m.sessions.Profile(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	w := NewWidget(store, m.completer, Options{
		Profile:       p,
		FramePrompt:   m.opts.FramePrompt,
		SpeechEnabled: m.opts.SpeechEnabled,
	})
	m.widgets[sessionID] = w
	return w, nil
}

// Forget drops the widget and the session behind it.
func (m *Manager) Forget(ctx context.Context, sessionID string) {
	m.mu.Lock()
	w, ok := m.widgets[sessionID]
	delete(m.widgets, sessionID)
	m.mu.Unlock()

	if ok {
		w.StopSpeaking()
	}
	m.sessions.DeleteSession(ctx, sessionID)
}
