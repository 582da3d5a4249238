// Package assistant drives one chat widget: draft in, completion out, reply rendered and
// optionally spoken.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/educhain/assistant/backend/internal/model/chat"
	"github.com/educhain/assistant/backend/internal/model/profile"
	"github.com/educhain/assistant/backend/internal/model/speech"
	chatsvc "github.com/educhain/assistant/backend/internal/service/chat"
	"github.com/educhain/assistant/backend/internal/service/completion"
	"github.com/educhain/assistant/backend/internal/service/input"
	"github.com/educhain/assistant/backend/internal/service/prompt"
	"github.com/educhain/assistant/backend/pkg/log"
)

var (
	ErrEmptyDraft      = errors.New("draft is empty")
	ErrRequestInFlight = errors.New("a request is already in flight")
	ErrNotUserTurn     = errors.New("only user turns can be submitted")
)

// State is the position of the widget in its request cycle.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingResponse     State = "awaiting_response"
	StateRendered             State = "rendered"
	StateRenderedWithFallback State = "rendered_with_fallback"
)

// EventType distinguishes widget notifications.
type EventType string

const (
	EventTurn  EventType = "turn"
	EventState EventType = "state"
)

// Event is delivered to subscribers for every appended turn and state change.
type Event struct {
	Type  EventType
	Turn  chat.Turn
	State State
}

// Options configures a widget.
type Options struct {
	Profile       profile.Profile
	FramePrompt   bool
	SpeechEnabled bool
	Synthesizer   SpeechSynthesizer
}

// Result describes one completed request cycle.
type Result struct {
	User     chat.Turn
	Reply    chat.Turn
	Fallback bool
}

// Widget owns the draft, the message log and the renderer of one session.
type Widget struct {
	store     *chatsvc.Store
	draft     *input.Draft
	completer completion.Completer
	renderer  *Renderer
	profile   profile.Profile
	frame     bool

	inFlight atomic.Bool

	mu      sync.Mutex
	state   State
	subs    map[int]func(Event)
	nextSub int
}

// NewWidget wires a widget around store and completer. Prompt framing is skipped when
// completer already sends the profile context as its system message.
func NewWidget(store *chatsvc.Store, completer completion.Completer, opts Options) *Widget {
	return &Widget{
		store:     store,
		draft:     input.NewDraft(),
		completer: completer,
		renderer:  NewRenderer(store, opts.Synthesizer, opts.SpeechEnabled),
		profile:   opts.Profile,
		frame:     opts.FramePrompt && !completion.HasSystemPrompt(completer),
		state:     StateIdle,
		subs:      make(map[int]func(Event)),
	}
}

// Submit sends the current draft. An empty draft is a no-op reported as ErrEmptyDraft; a
// submit during a running cycle returns ErrRequestInFlight and leaves the draft alone.
func (w *Widget) Submit(ctx context.Context) (Result, error) {
	if !w.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrRequestInFlight
	}

	text, ok := w.draft.Take()
	if !ok {
		w.inFlight.Store(false)
		return Result{}, ErrEmptyDraft
	}
	return w.run(ctx, chatsvc.NewTurn(chat.RoleUser, text)), nil
}

// SubmitText sends text without touching the draft.
func (w *Widget) SubmitText(ctx context.Context, text string) (Result, error) {
	return w.SubmitTurn(ctx, chatsvc.NewTurn(chat.RoleUser, text))
}

// SubmitTurn sends a user turn built by the caller, so its ID is known before any event
// of the cycle is published. The content is trimmed before it is appended.
func (w *Widget) SubmitTurn(ctx context.Context, turn chat.Turn) (Result, error) {
	turn.Content = strings.TrimSpace(turn.Content)
	if turn.Content == "" {
		return Result{}, ErrEmptyDraft
	}
	if turn.Role != chat.RoleUser {
		return Result{}, fmt.Errorf("submit %s turn: %w", turn.Role, ErrNotUserTurn)
	}
	if !w.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrRequestInFlight
	}
	return w.run(ctx, turn), nil
}

func (w *Widget) run(ctx context.Context, user chat.Turn) Result {
	l := log.Ctx(ctx)

	w.setState(StateAwaitingResponse)

	var res Result
	turns := w.store.Append(user)
	res.User = turns[len(turns)-1]
	w.publish(Event{Type: EventTurn, Turn: res.User})

	query := user.Content
	if w.frame {
		query = prompt.Chat(w.profile.Context, "", user.Content)
	}

	reply, err := w.completer.Complete(ctx, query)
	if err != nil {
		l.Error().Err(err).Msg("completion failed, rendering fallback")
		res.Reply = w.renderer.RenderFallback()
		res.Fallback = true
		w.publish(Event{Type: EventTurn, Turn: res.Reply})
		w.setState(StateRenderedWithFallback)
	} else {
		res.Reply = w.renderer.Render(ctx, reply)
		w.publish(Event{Type: EventTurn, Turn: res.Reply})
		w.setState(StateRendered)
	}

	w.mu.Lock()
	w.state = StateIdle
	w.mu.Unlock()
	w.inFlight.Store(false)
	w.publish(Event{Type: EventState, State: StateIdle})

	return res
}

// SetDraft replaces the draft with typed text.
func (w *Widget) SetDraft(text string) {
	w.draft.SetText(text)
}

// ApplyRecognition replaces the draft with the transcript of event and returns it.
func (w *Widget) ApplyRecognition(event speech.RecognitionEvent) string {
	return w.draft.ApplyRecognition(event)
}

// Draft returns the pending input.
func (w *Widget) Draft() string {
	return w.draft.Value()
}

// Listen runs recognizer over audio and mirrors every event into the draft.
func (w *Widget) Listen(ctx context.Context, recognizer SpeechRecognizer, audio io.Reader, notify func(draft string, final bool)) error {
	events := make(chan speech.RecognitionEvent, 8)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return recognizer.Recognize(gctx, audio, events)
	})
	g.Go(func() error {
		return w.draft.Follow(gctx, events, notify)
	})
	return g.Wait()
}

// Messages returns a copy of the message log.
func (w *Widget) Messages() []chat.Turn {
	return w.store.Current()
}

// Clear resets the log to its seed state and stops playback.
func (w *Widget) Clear() []chat.Turn {
	w.renderer.StopSpeaking()
	return w.store.Reset()
}

// SetSpeechEnabled toggles reply playback.
func (w *Widget) SetSpeechEnabled(enabled bool) {
	w.renderer.SetSpeechEnabled(enabled)
}

// SpeechEnabled reports whether replies are spoken.
func (w *Widget) SpeechEnabled() bool {
	return w.renderer.SpeechEnabled()
}

// SetSynthesizer changes the playback target.
func (w *Widget) SetSynthesizer(synth SpeechSynthesizer) {
	w.renderer.SetSynthesizer(synth)
}

// AttachSynthesizer changes the playback target until the returned detach is called or
// another synthesizer replaces it.
func (w *Widget) AttachSynthesizer(synth SpeechSynthesizer) (detach func()) {
	return w.renderer.AttachSynthesizer(synth)
}

// StopSpeaking cancels the running playback.
func (w *Widget) StopSpeaking() {
	w.renderer.StopSpeaking()
}

// WaitPlayback blocks until started playbacks have finished.
func (w *Widget) WaitPlayback() {
	w.renderer.Wait()
}

// Profile returns the profile the widget was built for.
func (w *Widget) Profile() profile.Profile {
	return w.profile
}

// State returns the current cycle state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Subscribe registers fn for widget events and returns a function removing it.
// fn runs on the goroutine driving the cycle and must not block.
func (w *Widget) Subscribe(fn func(Event)) func() {
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

func (w *Widget) setState(state State) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
	w.publish(Event{Type: EventState, State: state})
}

func (w *Widget) publish(event Event) {
	w.mu.Lock()
	subs := make([]func(Event), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}
