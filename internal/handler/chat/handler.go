package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/educhain/assistant/backend/internal/model/chat"
	"github.com/educhain/assistant/backend/internal/service/assistant"
	chatService "github.com/educhain/assistant/backend/internal/service/chat"
	"github.com/educhain/assistant/backend/pkg/log"
	"github.com/educhain/assistant/backend/pkg/utils"
)

// Handler exposes sessions and their message logs.
type Handler struct {
	chatSvc    *chatService.Service
	assistants *assistant.Manager
}

// New creates a chat handler.
func New(chatSvc *chatService.Service, assistants *assistant.Manager) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		assistants: assistants,
	}
}

// RegisterRoutes registers the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(s chi.Router) {
		s.Get("/", h.handleGetSession)
		s.Delete("/", h.handleDeleteSession)
		s.Get("/messages", h.handleListMessages)
		s.Post("/messages", h.handleSendMessage)
		s.Delete("/messages", h.handleClearMessages)
	})
}

// MessagesResponse is the message log of a session.
type MessagesResponse struct {
	SessionID string      `json:"sessionId"`
	Messages  []chat.Turn `json:"messages"`
}

// SendResponse describes one completed request cycle.
type SendResponse struct {
	SessionID string    `json:"sessionId"`
	User      chat.Turn `json:"user"`
	Reply     chat.Turn `json:"reply"`
	Fallback  bool      `json:"fallback"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProfileID string `json:"profileId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.ProfileID)
	if err != nil {
		if errors.Is(err, chatService.ErrProfileNotFound) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	h.assistants.Forget(r.Context(), sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, MessagesResponse{SessionID: sessionID, Messages: messages})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	widget, err := h.assistants.Widget(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	ctx := log.WithLogger(r.Context(), log.Ctx(r.Context()).With().Str(log.FieldSessionID, sessionID).Logger())
	result, err := widget.SubmitText(ctx, payload.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, SendResponse{
		SessionID: sessionID,
		User:      result.User,
		Reply:     result.Reply,
		Fallback:  result.Fallback,
	})
}

func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	widget, err := h.assistants.Widget(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, MessagesResponse{SessionID: sessionID, Messages: widget.Clear()})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrProfileNotFound):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, assistant.ErrEmptyDraft):
		utils.RespondError(w, http.StatusBadRequest, "text is required")
	case errors.Is(err, assistant.ErrRequestInFlight):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
