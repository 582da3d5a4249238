package input

import (
	"context"
	"strings"
	"sync"

	"github.com/educhain/assistant/backend/internal/model/speech"
)

// Producer names the source that last wrote the draft.
type Producer string

const (
	ProducerNone  Producer = ""
	ProducerText  Producer = "text"
	ProducerVoice Producer = "voice"
)

// Draft is the not-yet-submitted input of a widget.
//
// Voice input replaces whatever was typed before it; typed content is not merged into
// recognition results.
type Draft struct {
	mu     sync.Mutex
	text   string
	active Producer
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{}
}

// SetText replaces the draft with the latest text-entry value.
func (d *Draft) SetText(value string) {
	d.mu.Lock()
	d.text = value
	d.active = ProducerText
	d.mu.Unlock()
}

// ApplyRecognition replaces the draft with the concatenated transcript of event.
func (d *Draft) ApplyRecognition(event speech.RecognitionEvent) string {
	transcript := event.Transcript()

	d.mu.Lock()
	d.text = transcript
	d.active = ProducerVoice
	d.mu.Unlock()

	return transcript
}

// Value returns the current draft.
func (d *Draft) Value() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Active returns the producer that last wrote the draft.
func (d *Draft) Active() Producer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Take returns the trimmed draft and clears it. An empty or whitespace-only draft is
// left untouched and reported with ok=false.
func (d *Draft) Take() (text string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	trimmed := strings.TrimSpace(d.text)
	if trimmed == "" {
		return "", false
	}

	d.text = ""
	d.active = ProducerNone
	return trimmed, true
}

// Clear empties the draft.
func (d *Draft) Clear() {
	d.mu.Lock()
	d.text = ""
	d.active = ProducerNone
	d.mu.Unlock()
}

// Follow applies recognition events to d until events is closed or ctx is done.
// notify, when set, receives every new draft value.
func (d *Draft) Follow(ctx context.Context, events <-chan speech.RecognitionEvent, notify func(draft string, final bool)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			value := d.ApplyRecognition(event)
			if notify != nil {
				notify(value, event.Final())
			}
		}
	}
}
