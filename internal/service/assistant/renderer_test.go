package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatsvc "github.com/educhain/assistant/backend/internal/service/chat"
)

func waitSpoken(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case text := <-ch:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not start")
		return ""
	}
}

func TestRendererNewPlaybackCancelsPrevious(t *testing.T) {
	synth := &fakeSynth{block: true, started: make(chan string, 2)}
	r := NewRenderer(chatsvc.NewStore(""), synth, true)

	r.Render(context.Background(), "first")
	assert.Equal(t, "first", waitSpoken(t, synth.started))

	r.Render(context.Background(), "second")
	assert.Equal(t, "second", waitSpoken(t, synth.started))

	r.StopSpeaking()
	r.Wait()

	spoken, canceled := synth.snapshot()
	assert.Equal(t, []string{"first", "second"}, spoken)
	assert.ElementsMatch(t, []string{"first", "second"}, canceled)
}

func TestRendererPlaybackOutlivesRequestContext(t *testing.T) {
	synth := &fakeSynth{block: true, started: make(chan string, 1)}
	r := NewRenderer(chatsvc.NewStore(""), synth, true)

	ctx, cancel := context.WithCancel(context.Background())
	r.Render(ctx, "reply")
	waitSpoken(t, synth.started)
	cancel()

	time.Sleep(20 * time.Millisecond)
	_, canceled := synth.snapshot()
	assert.Empty(t, canceled)

	r.StopSpeaking()
	r.Wait()
	_, canceled = synth.snapshot()
	assert.Equal(t, []string{"reply"}, canceled)
}

func TestRendererSpeechDisabled(t *testing.T) {
	synth := &fakeSynth{}
	store := chatsvc.NewStore("")
	r := NewRenderer(store, synth, false)

	turn := r.Render(context.Background(), "quiet")
	r.Wait()

	assert.Equal(t, "quiet", turn.Content)
	require.Equal(t, 1, store.Len())
	spoken, _ := synth.snapshot()
	assert.Empty(t, spoken)

	r.SetSpeechEnabled(true)
	r.Render(context.Background(), "loud")
	r.Wait()
	spoken, _ = synth.snapshot()
	assert.Equal(t, []string{"loud"}, spoken)
}

func TestRendererWithoutSynthesizer(t *testing.T) {
	r := NewRenderer(chatsvc.NewStore(""), nil, true)
	turn := r.Render(context.Background(), "text only")
	r.Wait()
	assert.Equal(t, "text only", turn.Content)
}

func TestRendererStaleDetachKeepsNewerSynthesizer(t *testing.T) {
	older := &fakeSynth{}
	newer := &fakeSynth{}
	r := NewRenderer(chatsvc.NewStore(""), nil, true)

	detachOlder := r.AttachSynthesizer(older)
	detachNewer := r.AttachSynthesizer(newer)
	detachOlder()

	r.Render(context.Background(), "still heard")
	r.Wait()

	spoken, _ := newer.snapshot()
	assert.Equal(t, []string{"still heard"}, spoken)
	spoken, _ = older.snapshot()
	assert.Empty(t, spoken)

	detachNewer()
	r.Render(context.Background(), "silent")
	r.Wait()
	spoken, _ = newer.snapshot()
	assert.Equal(t, []string{"still heard"}, spoken)
}
