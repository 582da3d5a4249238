package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/educhain/assistant/backend/internal/model/speech"
	"github.com/educhain/assistant/backend/internal/service/assistant"
	chatservice "github.com/educhain/assistant/backend/internal/service/chat"
	speechsvc "github.com/educhain/assistant/backend/internal/service/speech"
	"github.com/educhain/assistant/backend/pkg/log"
	"github.com/educhain/assistant/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20

// SpeechService is the speech surface the HTTP layer needs.
type SpeechService interface {
	Enabled() bool
	TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speech.ASRResponse, error)
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
	// StreamRecognizer returns the recognizer that feeds a widget draft.
	StreamRecognizer() assistant.SpeechRecognizer
	// Speaker returns a synthesizer playing replies into sink.
	Speaker(sink speechsvc.AudioSink, voice, language string) assistant.SpeechSynthesizer
}

type serviceAdapter struct {
	*speechsvc.Service
}

// Adapt exposes a speech service through SpeechService.
func Adapt(svc *speechsvc.Service) SpeechService {
	return serviceAdapter{Service: svc}
}

func (a serviceAdapter) StreamRecognizer() assistant.SpeechRecognizer {
	return a.Service.Recognizer()
}

func (a serviceAdapter) Speaker(sink speechsvc.AudioSink, voice, language string) assistant.SpeechSynthesizer {
	return a.Service.NewSpeaker(sink, voice, language)
}

// Handler serves transcription, synthesis and the widget websocket.
type Handler struct {
	speechSvc  SpeechService
	chatSvc    *chatservice.Service
	assistants *assistant.Manager
}

// New creates a speech handler. speechSvc may be nil, in which case speech features
// report themselves unavailable while the websocket still serves typed input.
func New(speechSvc SpeechService, chatSvc *chatservice.Service, assistants *assistant.Manager) *Handler {
	return &Handler{
		speechSvc:  speechSvc,
		chatSvc:    chatSvc,
		assistants: assistants,
	}
}

// RegisterRoutes registers the speech routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(sr chi.Router) {
		sr.Post("/transcribe", h.handleTranscribe)
		sr.Post("/synthesize", h.handleSynthesize)
		sr.Get("/health", h.handleHealth)

		if h.assistants != nil {
			NewWebSocketHandler(h.speechSvc, h.assistants).RegisterWebSocketRoutes(sr)
		} else {
			sr.Get("/ws/{sessionID}", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusNotImplemented, "speech websocket not available")
			})
		}
	})
}

func (h *Handler) available() bool {
	return h.speechSvc != nil && h.speechSvc.Enabled()
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if !h.available() {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech recognition unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		sessionID = "default"
	}
	language := r.FormValue("language")
	if language == "" {
		language = "en-US"
	}

	resp, err := h.speechSvc.TranscribeBuffer(r.Context(), sessionID, audio, inferAudioFormat(header.Filename), language)
	if err != nil {
		l := log.Ctx(r.Context())
		l.Error().Err(err).Msg("speech recognition failed")
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if !h.available() {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis unavailable")
		return
	}

	var req speech.TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	if strings.TrimSpace(req.Voice) == "" || req.Language == "" {
		h.applyProfileVoice(r.Context(), &req)
	}

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), &req)
	if err != nil {
		l := log.Ctx(r.Context())
		l.Error().Err(err).Msg("speech synthesis failed")
		status := http.StatusBadGateway
		if errors.Is(err, speechsvc.ErrEmptyText) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, "speech synthesis failed")
		return
	}

	format := resp.Format
	if format == "" {
		format = "mpeg"
	}
	w.Header().Set("Content-Type", "audio/"+format)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.Header().Set("Content-Disposition", "attachment; filename=speech."+resp.Format)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		l := log.Ctx(r.Context())
		l.Warn().Err(err).Msg("failed to write audio response")
	}
}

// applyProfileVoice fills voice and language from the profile of the request session.
func (h *Handler) applyProfileVoice(ctx context.Context, req *speech.TTSRequest) {
	if h.chatSvc == nil {
		return
	}
	p, err := h.chatSvc.Profile(ctx, req.SessionID)
	if err != nil {
		return
	}
	if strings.TrimSpace(req.Voice) == "" {
		req.Voice = p.VoiceID
	}
	if req.Language == "" {
		req.Language = p.Language
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if !h.available() {
		status = "disabled"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"service": "speech",
	})
}

func inferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3":
		return "mp3"
	case ".pcm", ".raw":
		return "pcm"
	case ".ogg", ".opus":
		return "ogg"
	default:
		return "wav"
	}
}
