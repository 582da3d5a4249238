package stream

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/educhain/assistant/backend/internal/model/chat"
	"github.com/educhain/assistant/backend/internal/service/assistant"
	chatService "github.com/educhain/assistant/backend/internal/service/chat"
	"github.com/educhain/assistant/backend/pkg/log"
	"github.com/educhain/assistant/backend/pkg/utils"
)

// Event names written on the stream.
const (
	EventUser      = "user"
	EventState     = "state"
	EventAssistant = "assistant"
	EventFallback  = "fallback"
	EventError     = "error"
	EventEnd       = "end"
)

// Handler runs one request cycle per call and reports it via Server-Sent Events.
type Handler struct {
	assistants *assistant.Manager
}

// New creates a stream handler.
func New(assistants *assistant.Manager) *Handler {
	return &Handler{assistants: assistants}
}

// StreamResponse is the data line of every event.
type StreamResponse struct {
	SessionID string     `json:"sessionId"`
	Turn      *chat.Turn `json:"turn,omitempty"`
	State     string     `json:"state,omitempty"`
	Finished  bool       `json:"finished,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// RegisterRoutes registers the stream route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	widget, err := h.assistants.Widget(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := log.WithLogger(r.Context(), log.Ctx(r.Context()).With().Str(log.FieldSessionID, sessionID).Logger())
	l := log.Ctx(ctx)

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	user := chatService.NewTurn(chat.RoleUser, message)
	var (
		mu     sync.Mutex
		active = true
	)
	send := func(event string, resp StreamResponse) {
		if !active {
			return
		}
		resp.SessionID = sessionID
		utils.SendSSEEvent(w, flusher, event, resp)
	}

	filter := &cycleFilter{userID: user.ID, emit: send}
	unsubscribe := widget.Subscribe(func(e assistant.Event) {
		mu.Lock()
		defer mu.Unlock()
		filter.handle(e)
	})

	result, err := widget.SubmitTurn(ctx, user)
	unsubscribe()

	mu.Lock()
	defer mu.Unlock()

	if err != nil {
		l.Warn().Err(err).Msg("stream submit rejected")
		send(EventError, StreamResponse{Error: err.Error()})
	}
	send(EventEnd, StreamResponse{Finished: true})
	active = false

	if err != nil {
		return
	}
	l.Info().Bool("fallback", result.Fallback).Msg("stream cycle completed")
}

// cycleFilter forwards the events of one request cycle. Subscribers also see cycles
// started elsewhere on the same widget, so forwarding runs from the user turn with userID
// up to the following idle state.
type cycleFilter struct {
	userID   string
	emit     func(event string, resp StreamResponse)
	started  bool
	finished bool
	reply    chat.Turn
}

func (f *cycleFilter) handle(e assistant.Event) {
	if f.finished {
		return
	}
	switch e.Type {
	case assistant.EventTurn:
		if !f.started {
			if e.Turn.ID == f.userID {
				f.started = true
				turn := e.Turn
				f.emit(EventUser, StreamResponse{Turn: &turn})
			}
			return
		}
		if e.Turn.Role == chat.RoleAssistant {
			f.reply = e.Turn
		}
	case assistant.EventState:
		if !f.started {
			return
		}
		switch e.State {
		case assistant.StateRendered:
			f.emit(EventAssistant, StreamResponse{Turn: &f.reply})
		case assistant.StateRenderedWithFallback:
			f.emit(EventFallback, StreamResponse{Turn: &f.reply})
		}
		f.emit(EventState, StreamResponse{State: string(e.State)})
		f.finished = e.State == assistant.StateIdle
	}
}
