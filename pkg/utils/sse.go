package utils

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/educhain/assistant/backend/pkg/log"
)

// SetupSSEHeaders prepares w for a text/event-stream response.
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// SendSSEEvent writes one named event with a JSON data line and flushes it.
func SendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	l := log.L()
	payload, err := json.Marshal(data)
	if err != nil {
		l.Warn().Err(err).Str("event", event).Msg("failed to marshal sse event")
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		l.Warn().Err(err).Str("event", event).Msg("failed to write sse event")
		return
	}
	flusher.Flush()
}
