package input

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educhain/assistant/backend/internal/model/speech"
)

func event(final bool, transcripts ...string) speech.RecognitionEvent {
	var ev speech.RecognitionEvent
	for _, tr := range transcripts {
		ev.Results = append(ev.Results, speech.RecognitionResult{
			Alternatives: []speech.Alternative{{Transcript: tr}},
			Final:        final,
		})
	}
	return ev
}

func TestSetTextReplaces(t *testing.T) {
	d := NewDraft()
	d.SetText("h")
	d.SetText("hello")

	assert.Equal(t, "hello", d.Value())
	assert.Equal(t, ProducerText, d.Active())
}

func TestRecognitionOverwritesTypedDraft(t *testing.T) {
	d := NewDraft()
	d.SetText("typed but unsent")

	got := d.ApplyRecognition(event(false, "how do ", "gas fees work"))

	assert.Equal(t, "how do gas fees work", got)
	assert.Equal(t, "how do gas fees work", d.Value())
	assert.Equal(t, ProducerVoice, d.Active())
}

func TestTakeIgnoresBlankDraft(t *testing.T) {
	d := NewDraft()
	for _, blank := range []string{"", "   ", "\n\t"} {
		d.SetText(blank)
		text, ok := d.Take()
		assert.False(t, ok)
		assert.Empty(t, text)
		assert.Equal(t, blank, d.Value(), "blank draft must stay as typed")
	}
}

func TestTakeTrimsAndClears(t *testing.T) {
	d := NewDraft()
	d.SetText("  hello  ")

	text, ok := d.Take()
	require.True(t, ok)
	assert.Equal(t, "hello", text)
	assert.Empty(t, d.Value())
	assert.Equal(t, ProducerNone, d.Active())
}

func TestFollowAppliesEveryEvent(t *testing.T) {
	d := NewDraft()
	events := make(chan speech.RecognitionEvent, 3)
	events <- event(false, "what")
	events <- event(false, "what is")
	events <- event(true, "what is ", "staking")
	close(events)

	var seen []string
	var finals []bool
	err := d.Follow(context.Background(), events, func(draft string, final bool) {
		seen = append(seen, draft)
		finals = append(finals, final)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"what", "what is", "what is staking"}, seen)
	assert.Equal(t, []bool{false, false, true}, finals)
	assert.Equal(t, "what is staking", d.Value())
}

func TestFollowStopsOnCancel(t *testing.T) {
	d := NewDraft()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Follow(ctx, make(chan speech.RecognitionEvent), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
