package speech

import (
	"bytes"
	"context"

	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
)

// Service groups the recognizer and synthesizer behind one configuration.
type Service struct {
	config      *speechmodel.SpeechConfig
	recognizer  *Recognizer
	synthesizer *Synthesizer
}

type serviceOptions struct {
	recognizer  []Option
	synthesizer []Option
}

// ServiceOption customizes one of the clients built by NewService.
type ServiceOption func(*serviceOptions)

// WithRecognizerOptions applies opts to the recognizer only.
func WithRecognizerOptions(opts ...Option) ServiceOption {
	return func(o *serviceOptions) { o.recognizer = append(o.recognizer, opts...) }
}

// WithSynthesizerOptions applies opts to the synthesizer only.
func WithSynthesizerOptions(opts ...Option) ServiceOption {
	return func(o *serviceOptions) { o.synthesizer = append(o.synthesizer, opts...) }
}

// NewService creates the speech clients for config.
func NewService(config *speechmodel.SpeechConfig, opts ...ServiceOption) *Service {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		config:      config,
		recognizer:  NewRecognizer(config, o.recognizer...),
		synthesizer: NewSynthesizer(config, o.synthesizer...),
	}
}

// Enabled reports whether credentials are present.
func (s *Service) Enabled() bool {
	_, _, err := resolveCredentials(s.config)
	return err == nil
}

// Config returns the speech configuration.
func (s *Service) Config() *speechmodel.SpeechConfig {
	return s.config
}

// Recognizer returns the streaming recognizer.
func (s *Service) Recognizer() *Recognizer {
	return s.recognizer
}

// Synthesizer returns the TTS client.
func (s *Service) Synthesizer() *Synthesizer {
	return s.synthesizer
}

// TranscribeBuffer recognizes an in-memory clip.
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speechmodel.ASRResponse, error) {
	return s.recognizer.Transcribe(ctx, &speechmodel.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audio),
		Format:    format,
		Language:  language,
	})
}

// SynthesizeSpeech converts req to audio.
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	return s.synthesizer.Synthesize(ctx, req)
}

// NewSpeaker returns a playback adapter writing into sink.
func (s *Service) NewSpeaker(sink AudioSink, voice, language string) *Speaker {
	if language == "" {
		language = s.config.TTSLanguage
	}
	return NewSpeaker(s.synthesizer, sink, voice, language)
}
