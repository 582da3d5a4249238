package speech

import (
	"context"
	"fmt"

	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
)

// AudioSink plays synthesized audio to the user.
type AudioSink interface {
	Play(ctx context.Context, audio *speechmodel.TTSResponse) error
}

// AudioSinkFunc adapts a function to AudioSink.
type AudioSinkFunc func(ctx context.Context, audio *speechmodel.TTSResponse) error

// Play calls f.
func (f AudioSinkFunc) Play(ctx context.Context, audio *speechmodel.TTSResponse) error {
	return f(ctx, audio)
}

// Speaker synthesizes a reply and hands the audio to a sink.
type Speaker struct {
	synth    *Synthesizer
	sink     AudioSink
	voice    string
	language string
}

// NewSpeaker binds synth to sink with a fixed voice and language.
func NewSpeaker(synth *Synthesizer, sink AudioSink, voice, language string) *Speaker {
	return &Speaker{synth: synth, sink: sink, voice: voice, language: language}
}

// Speak synthesizes text and plays it. Cancelling ctx aborts either step.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	audio, err := s.synth.Synthesize(ctx, &speechmodel.TTSRequest{
		Text:     text,
		Voice:    s.voice,
		Language: s.language,
	})
	if err != nil {
		return fmt.Errorf("synthesize reply: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.sink.Play(ctx, audio)
}
