package assistant

import (
	"context"
	"errors"
	"sync"

	"github.com/educhain/assistant/backend/internal/model/chat"
	chatsvc "github.com/educhain/assistant/backend/internal/service/chat"
	"github.com/educhain/assistant/backend/pkg/log"
)

// FallbackMessage is appended in place of a reply when the completion call fails.
const FallbackMessage = "Sorry, I'm having trouble processing your request right now. Please check your internet connection and try again."

// Renderer appends assistant turns and hands replies to the synthesizer.
// At most one playback runs at a time; a new one cancels its predecessor.
type Renderer struct {
	store *chatsvc.Store

	mu         sync.Mutex
	synth      SpeechSynthesizer
	owner      uint64
	enabled    bool
	cancel     context.CancelFunc
	generation uint64
	wg         sync.WaitGroup
}

// NewRenderer creates a renderer writing into store. synth may be nil.
func NewRenderer(store *chatsvc.Store, synth SpeechSynthesizer, speechEnabled bool) *Renderer {
	return &Renderer{
		store:   store,
		synth:   synth,
		enabled: speechEnabled,
	}
}

// Render appends text as an assistant turn and starts playback when enabled.
func (r *Renderer) Render(ctx context.Context, text string) chat.Turn {
	turn := r.appendTurn(text)
	r.speak(ctx, text)
	return turn
}

// RenderFallback appends the fallback turn. It is never spoken.
func (r *Renderer) RenderFallback() chat.Turn {
	return r.appendTurn(FallbackMessage)
}

func (r *Renderer) appendTurn(text string) chat.Turn {
	turns := r.store.Append(chatsvc.NewTurn(chat.RoleAssistant, text))
	return turns[len(turns)-1]
}

// SetSynthesizer swaps the playback target; nil disables playback until one is set again.
// Any running playback is stopped.
func (r *Renderer) SetSynthesizer(synth SpeechSynthesizer) {
	r.mu.Lock()
	r.attachLocked(synth)
	r.mu.Unlock()
}

// AttachSynthesizer makes synth the playback target and returns a function that detaches
// it again. Detaching is a no-op once another synthesizer has been set since.
func (r *Renderer) AttachSynthesizer(synth SpeechSynthesizer) (detach func()) {
	r.mu.Lock()
	owner := r.attachLocked(synth)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.owner != owner {
			return
		}
		r.attachLocked(nil)
	}
}

func (r *Renderer) attachLocked(synth SpeechSynthesizer) uint64 {
	r.synth = synth
	r.owner++
	r.stopLocked()
	return r.owner
}

// SetSpeechEnabled toggles playback. Disabling stops the running playback.
func (r *Renderer) SetSpeechEnabled(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	if !enabled {
		r.stopLocked()
	}
	r.mu.Unlock()
}

// SpeechEnabled reports whether replies are spoken.
func (r *Renderer) SpeechEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// StopSpeaking cancels the running playback, if any.
func (r *Renderer) StopSpeaking() {
	r.mu.Lock()
	r.stopLocked()
	r.mu.Unlock()
}

// Wait blocks until every started playback has returned.
func (r *Renderer) Wait() {
	r.wg.Wait()
}

func (r *Renderer) stopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Renderer) speak(ctx context.Context, text string) {
	r.mu.Lock()
	if !r.enabled || r.synth == nil {
		r.mu.Unlock()
		return
	}

	r.stopLocked()
	// Playback outlives the request that produced the reply.
	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.generation++
	gen := r.generation
	synth := r.synth
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.release(gen, cancel)

		if err := synth.Speak(playCtx, text); err != nil && !errors.Is(err, context.Canceled) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("speech playback failed")
		}
	}()
}

func (r *Renderer) release(gen uint64, cancel context.CancelFunc) {
	cancel()
	r.mu.Lock()
	if r.generation == gen {
		r.cancel = nil
	}
	r.mu.Unlock()
}
