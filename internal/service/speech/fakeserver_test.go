package speech

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
)

func testSpeechConfig() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		AppID:       "app",
		AccessToken: "token",
		ASRLanguage: "en-US",
		TTSVoice:    "en_default",
		TTSSpeed:    0.9,
		TTSVolume:   0.8,
		TTSLanguage: "en-US",
	}
}

// fakeServer runs handle for every websocket connection it accepts.
func fakeServer(t *testing.T, handle func(t *testing.T, r *http.Request, conn *websocket.Conn)) (string, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(t, r, conn)
	}))
	return "ws" + strings.TrimPrefix(srv.URL, "http"), srv.Close
}

func readFrame(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("server read: %v", err)
		return nil
	}
	msg, err := DecodeMessage(bytes.NewReader(data))
	if err != nil {
		t.Errorf("server decode: %v", err)
		return nil
	}
	return msg
}

func writeJSONFrame(t *testing.T, conn *websocket.Conn, msgType MessageType, flags MessageFlags, seq int32, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	compressed, _ := CompressPayload(raw, GzipCompression)
	frame, _ := EncodeMessage(&Message{
		Header:      NewHeader(msgType, flags, JSONSerialization, GzipCompression),
		Sequence:    seq,
		PayloadSize: uint32(len(compressed)),
		Payload:     compressed,
	})
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Errorf("server write: %v", err)
	}
}

func fastDialer() *Dialer {
	return &Dialer{HandshakeTimeout: 5 * time.Second, MaxAttempts: 1}
}
