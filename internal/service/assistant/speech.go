package assistant

import (
	"context"
	"io"

	"github.com/educhain/assistant/backend/internal/model/speech"
)

// SpeechSynthesizer plays text back to the user. Speak blocks until playback ends or ctx
// is cancelled.
type SpeechSynthesizer interface {
	Speak(ctx context.Context, text string) error
}

// SpeechRecognizer turns an audio stream into recognition events. Every event carries the
// full result list seen so far; the recognizer closes events when it returns.
type SpeechRecognizer interface {
	Recognize(ctx context.Context, audio io.Reader, events chan<- speech.RecognitionEvent) error
}
