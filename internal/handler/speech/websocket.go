package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
	"github.com/educhain/assistant/backend/internal/service/assistant"
	chatservice "github.com/educhain/assistant/backend/internal/service/chat"
	speechsvc "github.com/educhain/assistant/backend/internal/service/speech"
	"github.com/educhain/assistant/backend/pkg/log"
	"github.com/educhain/assistant/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Inbound message types.
const (
	MessageText   = "text"
	MessageSubmit = "submit"
	MessageAudio  = "audio"
	MessageConfig = "config"
	MessageClear  = "clear"
	MessageStop   = "stop"
)

// Outbound message types.
const (
	MessageConnected = "connected"
	MessageDraft     = "draft"
	MessageTurn      = "turn"
	MessageState     = "state"
	MessageTTS       = "tts"
	MessageMessages  = "messages"
	MessageError     = "error"
)

var errListenerClosed = errors.New("speech listener closed")

// WebSocketHandler drives a session widget over a websocket.
type WebSocketHandler struct {
	speechSvc  SpeechService
	assistants *assistant.Manager
	upgrader   websocket.Upgrader

	// closed is called once a connection has released its session.
	closed func(sessionID string)
}

// NewWebSocketHandler creates the widget websocket handler.
func NewWebSocketHandler(speechSvc SpeechService, assistants *assistant.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		speechSvc:  speechSvc,
		assistants: assistants,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes registers the websocket route.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage replaces the draft; on submit it is optional.
type TextMessage struct {
	Text string `json:"text"`
}

// AudioMessage carries one chunk of 16 kHz mono PCM. IsFinal ends the utterance.
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
	IsFinal   bool   `json:"isFinal"`
}

// ConfigMessage changes playback settings of the connection.
type ConfigMessage struct {
	SpeechEnabled *bool  `json:"speechEnabled,omitempty"`
	Voice         string `json:"voice"`
	Language      string `json:"language"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connection struct {
	speechSvc SpeechService
	conn      *websocket.Conn
	sessionID string
	widget    *assistant.Widget
	logger    zerolog.Logger

	ctx   context.Context
	group *errgroup.Group

	voice    string
	language string
	audio    *io.PipeWriter
	detach   func()

	writeMu sync.Mutex
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	widget, err := h.assistants.Widget(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.Ctx(r.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	stopClose := context.AfterFunc(gctx, func() { _ = conn.Close() })
	defer stopClose()

	p := widget.Profile()
	c := &connection{
		speechSvc: h.speechSvc,
		conn:      conn,
		sessionID: sessionID,
		widget:    widget,
		logger:    log.Component("websocket").With().Str(log.FieldSessionID, sessionID).Logger(),
		ctx:       gctx,
		group:     g,
		voice:     p.VoiceID,
		language:  p.Language,
	}

	c.logger.Info().Msg("connection opened")

	if c.speechAvailable() {
		c.detach = widget.AttachSynthesizer(c.speaker())
	}
	unsubscribe := widget.Subscribe(c.forward)

	c.send(MessageConnected, map[string]any{
		"profile":       p,
		"speech":        c.speechAvailable(),
		"speechEnabled": widget.SpeechEnabled(),
		"draft":         widget.Draft(),
		"messages":      widget.Messages(),
	})

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	g.Go(func() error {
		return c.pingLoop(gctx)
	})

	c.readLoop()

	cancel()
	if c.audio != nil {
		_ = c.audio.Close()
	}
	_ = g.Wait()

	unsubscribe()
	// A newer connection to the same session keeps its playback.
	if c.detach != nil {
		c.detach()
	}
	c.logger.Info().Msg("connection closed")

	if h.closed != nil {
		h.closed(sessionID)
	}
}

func (c *connection) readLoop() {
	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("read failed")
			}
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != c.sessionID {
			c.sendError("session mismatch")
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *connection) handleMessage(msg *inboundMessage) {
	switch msg.Type {
	case MessageText:
		c.handleText(msg.Data)
	case MessageSubmit:
		c.handleSubmit(msg.Data)
	case MessageAudio:
		c.handleAudio(msg.Data)
	case MessageConfig:
		c.handleConfig(msg.Data)
	case MessageClear:
		c.send(MessageMessages, map[string]any{"messages": c.widget.Clear()})
	case MessageStop:
		c.widget.StopSpeaking()
	default:
		c.sendError("unsupported message type: " + msg.Type)
	}
}

func (c *connection) handleText(raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		c.sendError("invalid text payload")
		return
	}
	c.widget.SetDraft(text.Text)
	c.send(MessageDraft, map[string]any{"text": c.widget.Draft(), "final": true})
}

func (c *connection) handleSubmit(raw json.RawMessage) {
	if len(raw) > 0 && string(raw) != "null" {
		var text TextMessage
		if err := json.Unmarshal(raw, &text); err != nil {
			c.sendError("invalid submit payload")
			return
		}
		if text.Text != "" {
			c.widget.SetDraft(text.Text)
		}
	}

	// The cycle outlives the connection so the reply still lands in the log.
	ctx := log.WithLogger(context.WithoutCancel(c.ctx), c.logger)
	c.group.Go(func() error {
		_, err := c.widget.Submit(ctx)
		switch {
		case errors.Is(err, assistant.ErrEmptyDraft):
			c.logger.Debug().Msg("empty draft ignored")
		case errors.Is(err, assistant.ErrRequestInFlight):
			c.sendError(err.Error())
		}
		return nil
	})
}

func (c *connection) handleAudio(raw json.RawMessage) {
	if !c.speechAvailable() {
		c.sendError("speech recognition unavailable")
		return
	}

	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		c.sendError("invalid audio payload")
		return
	}

	if c.audio == nil {
		c.startListening()
	}

	if len(audio.AudioData) > 0 {
		if _, err := c.audio.Write(audio.AudioData); err != nil {
			c.audio = nil
			c.sendError("speech recognition stopped")
			return
		}
	}

	if audio.IsFinal {
		_ = c.audio.Close()
		c.audio = nil
	}
}

func (c *connection) startListening() {
	pr, pw := io.Pipe()
	c.audio = pw

	recognizer := c.speechSvc.StreamRecognizer()
	c.group.Go(func() error {
		err := c.widget.Listen(c.ctx, recognizer, pr, c.notifyDraft)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error().Err(err).Msg("speech recognition failed")
			c.sendError("speech recognition failed")
		}
		pr.CloseWithError(errListenerClosed)
		return nil
	})
}

func (c *connection) notifyDraft(draft string, final bool) {
	c.send(MessageDraft, map[string]any{"text": draft, "final": final})
}

func (c *connection) handleConfig(raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		c.sendError("invalid config payload")
		return
	}

	c.applyConfig(cfg)

	c.send(MessageConfig, map[string]any{
		"speechEnabled": c.widget.SpeechEnabled(),
		"voice":         c.voice,
		"language":      c.language,
	})
}

func (c *connection) applyConfig(cfg ConfigMessage) {
	if cfg.SpeechEnabled != nil {
		c.widget.SetSpeechEnabled(*cfg.SpeechEnabled)
	}

	changed := false
	if cfg.Voice != "" && cfg.Voice != c.voice {
		c.voice = cfg.Voice
		changed = true
	}
	if cfg.Language != "" && cfg.Language != c.language {
		c.language = cfg.Language
		changed = true
	}
	if changed && c.speechAvailable() {
		c.detach = c.widget.AttachSynthesizer(c.speaker())
	}
}

func (c *connection) speechAvailable() bool {
	return c.speechSvc != nil && c.speechSvc.Enabled()
}

// speaker plays synthesized replies by sending them to the client.
func (c *connection) speaker() assistant.SpeechSynthesizer {
	sink := speechsvc.AudioSinkFunc(func(_ context.Context, audio *speechmodel.TTSResponse) error {
		return c.write(MessageTTS, map[string]any{
			"audioData": base64.StdEncoding.EncodeToString(audio.AudioData),
			"format":    audio.Format,
			"isFinal":   true,
		})
	})
	return c.speechSvc.Speaker(sink, c.voice, c.language)
}

func (c *connection) forward(e assistant.Event) {
	switch e.Type {
	case assistant.EventTurn:
		c.send(MessageTurn, e.Turn)
	case assistant.EventState:
		c.send(MessageState, map[string]any{"state": e.State})
	}
}

func (c *connection) pingLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}

func (c *connection) send(kind string, data interface{}) {
	if err := c.write(kind, data); err != nil {
		c.logger.Debug().Err(err).Str("type", kind).Msg("write failed")
	}
}

func (c *connection) sendError(message string) {
	c.send(MessageError, map[string]string{"message": message})
}

func (c *connection) write(kind string, data interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      kind,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}
