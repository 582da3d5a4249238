package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educhain/assistant/backend/internal/model/chat"
	"github.com/educhain/assistant/backend/internal/service/assistant"
	chatservice "github.com/educhain/assistant/backend/internal/service/chat"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startServer(t *testing.T, speechSvc SpeechService) (*httptest.Server, string) {
	t.Helper()
	chatSvc := newChatService()
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	manager := assistant.NewManager(chatSvc, stubCompleter{reply: "hi there"}, assistant.ManagerOptions{SpeechEnabled: true})

	r := chi.NewRouter()
	New(speechSvc, chatSvc, manager).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, session.ID
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/speech/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	first := readFrame(t, conn)
	require.Equal(t, MessageConnected, first.Type)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func sendFrame(t *testing.T, conn *websocket.Conn, kind string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": kind, "data": data}))
}

func TestWebSocketTypedCycle(t *testing.T) {
	srv, sessionID := startServer(t, &fakeSpeechService{})
	conn := dial(t, srv, sessionID)

	sendFrame(t, conn, MessageText, TextMessage{Text: "hello"})
	draft := readFrame(t, conn)
	require.Equal(t, MessageDraft, draft.Type)
	assert.JSONEq(t, `{"text":"hello","final":true}`, string(draft.Data))

	sendFrame(t, conn, MessageSubmit, nil)

	var (
		turns  []chat.Turn
		audio  string
		idle   bool
		states []string
	)
	for !idle || audio == "" {
		f := readFrame(t, conn)
		switch f.Type {
		case MessageTurn:
			var turn chat.Turn
			require.NoError(t, json.Unmarshal(f.Data, &turn))
			turns = append(turns, turn)
		case MessageState:
			var s struct{ State string }
			require.NoError(t, json.Unmarshal(f.Data, &s))
			states = append(states, s.State)
			idle = s.State == string(assistant.StateIdle)
		case MessageTTS:
			var tts struct{ AudioData string }
			require.NoError(t, json.Unmarshal(f.Data, &tts))
			decoded, err := base64.StdEncoding.DecodeString(tts.AudioData)
			require.NoError(t, err)
			audio = string(decoded)
		}
	}

	require.Len(t, turns, 2)
	assert.Equal(t, chat.RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, chat.RoleAssistant, turns[1].Role)
	assert.Equal(t, "hi there", turns[1].Content)
	assert.Equal(t, []string{"awaiting_response", "rendered", "idle"}, states)
	assert.Equal(t, "audio:hi there", audio)
}

func TestWebSocketAudioFillsDraft(t *testing.T) {
	srv, sessionID := startServer(t, &fakeSpeechService{})
	conn := dial(t, srv, sessionID)

	sendFrame(t, conn, MessageAudio, AudioMessage{AudioData: []byte("hello "), IsFinal: false})
	sendFrame(t, conn, MessageAudio, AudioMessage{AudioData: []byte("world"), IsFinal: true})

	draft := readFrame(t, conn)
	require.Equal(t, MessageDraft, draft.Type)
	assert.JSONEq(t, `{"text":"hello world","final":true}`, string(draft.Data))

	sendFrame(t, conn, MessageSubmit, nil)
	for {
		f := readFrame(t, conn)
		if f.Type == MessageTurn {
			var turn chat.Turn
			require.NoError(t, json.Unmarshal(f.Data, &turn))
			assert.Equal(t, "hello world", turn.Content)
			return
		}
	}
}

func TestWebSocketAudioWithoutSpeech(t *testing.T) {
	srv, sessionID := startServer(t, &fakeSpeechService{disabled: true})
	conn := dial(t, srv, sessionID)

	sendFrame(t, conn, MessageAudio, AudioMessage{AudioData: []byte("x"), IsFinal: true})
	f := readFrame(t, conn)
	require.Equal(t, MessageError, f.Type)
	assert.Contains(t, string(f.Data), "speech recognition unavailable")
}

func TestWebSocketClearAndUnknownType(t *testing.T) {
	srv, sessionID := startServer(t, &fakeSpeechService{})
	conn := dial(t, srv, sessionID)

	sendFrame(t, conn, "dance", nil)
	f := readFrame(t, conn)
	require.Equal(t, MessageError, f.Type)

	sendFrame(t, conn, MessageClear, nil)
	f = readFrame(t, conn)
	require.Equal(t, MessageMessages, f.Type)

	var got struct{ Messages []chat.Turn }
	require.NoError(t, json.Unmarshal(f.Data, &got))
	require.Len(t, got.Messages, 1)
	assert.Equal(t, chat.RoleAssistant, got.Messages[0].Role)
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv, _ := startServer(t, &fakeSpeechService{})

	resp, err := http.Get(srv.URL + "/speech/ws/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplyConfigUpdatesConnection(t *testing.T) {
	fakeSvc := &fakeSpeechService{}
	widget := assistant.NewWidget(chatservice.NewStore("hi"), stubCompleter{}, assistant.Options{SpeechEnabled: true})
	c := &connection{speechSvc: fakeSvc, widget: widget, voice: "en_default", language: "en-US"}

	disabled := false
	c.applyConfig(ConfigMessage{SpeechEnabled: &disabled, Voice: "en_male", Language: "en-GB"})

	assert.False(t, widget.SpeechEnabled())
	assert.Equal(t, "en_male", c.voice)
	assert.Equal(t, "en-GB", c.language)
	assert.Equal(t, []string{"en_male"}, fakeSvc.voices())

	c.applyConfig(ConfigMessage{Voice: "en_male"})
	assert.Len(t, fakeSvc.voices(), 1)
}

func TestWebSocketOlderCloseKeepsNewerPlayback(t *testing.T) {
	chatSvc := newChatService()
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	manager := assistant.NewManager(chatSvc, stubCompleter{reply: "hi there"}, assistant.ManagerOptions{SpeechEnabled: true})

	closed := make(chan string, 2)
	ws := NewWebSocketHandler(&fakeSpeechService{}, manager)
	ws.closed = func(sessionID string) { closed <- sessionID }

	r := chi.NewRouter()
	r.Route("/speech", ws.RegisterWebSocketRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	older := dial(t, srv, session.ID)
	newer := dial(t, srv, session.ID)

	require.NoError(t, older.Close())
	select {
	case id := <-closed:
		require.Equal(t, session.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("older connection was not released")
	}

	sendFrame(t, newer, MessageSubmit, TextMessage{Text: "hello"})
	for {
		f := readFrame(t, newer)
		if f.Type != MessageTTS {
			continue
		}
		var tts struct{ AudioData string }
		require.NoError(t, json.Unmarshal(f.Data, &tts))
		decoded, err := base64.StdEncoding.DecodeString(tts.AudioData)
		require.NoError(t, err)
		assert.Equal(t, "audio:hi there", string(decoded))
		return
	}
}
