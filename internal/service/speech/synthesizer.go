package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
	"github.com/educhain/assistant/backend/pkg/log"
)

const (
	ttsEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

	ttsResourceDefault = "volc.service_type.10029"
	ttsResourceMega    = "volc.megatts.default"
	ttsResourceSeed    = "seed-tts-2.0"

	ttsSuccessCode  = 3000
	ttsSampleRate   = 24000
	ttsDefaultVoice = "en_female_amy_jupiter_bigtts"
)

var (
	ErrEmptyText  = errors.New("text to synthesize is empty")
	ErrEmptyAudio = errors.New("synthesized audio is empty")
)

var voiceAliases = map[string]string{
	"en_default": ttsDefaultVoice,
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format          string  `json:"format"`
	SampleRate      int     `json:"sample_rate"`
	EnableTimestamp bool    `json:"enable_timestamp"`
	SpeedRatio      float32 `json:"speed_ratio,omitempty"`
	VolumeRatio     float32 `json:"volume_ratio,omitempty"`
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

// Synthesizer converts text to audio through the Volcengine unidirectional TTS stream.
type Synthesizer struct {
	cfg  *speechmodel.SpeechConfig
	opts clientOptions
}

// NewSynthesizer creates a TTS client for cfg.
func NewSynthesizer(cfg *speechmodel.SpeechConfig, opts ...Option) *Synthesizer {
	return &Synthesizer{cfg: cfg, opts: buildOptions(ttsEndpoint, ttsEndpoint, opts)}
}

// Synthesize returns the complete audio for req. When the service rejects a voice for the
// chosen resource id, the next resource and then the configured fallback voice are tried.
func (s *Synthesizer) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	appID, token, err := resolveCredentials(s.cfg)
	if err != nil {
		return nil, err
	}

	l := log.Ctx(ctx)
	encoding := audioEncoding(req.Format)
	speakers := speakerCandidates(req.Voice, s.cfg.TTSVoice)

	var lastMismatch error
	for _, speaker := range speakers {
		for _, resourceID := range resourceCandidates(speaker) {
			resp, err := s.synthesizeWith(ctx, req, appID, token, speaker, encoding, resourceID)
			if err == nil {
				return resp, nil
			}
			if !isResourceMismatchError(err) {
				return nil, err
			}
			l.Debug().Str("voice", speaker).Str("resource", resourceID).Msg("tts resource mismatch, trying next")
			lastMismatch = err
		}
	}

	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, fmt.Errorf("no compatible resource for voices %v", speakers)
}

func (s *Synthesizer) synthesizeWith(ctx context.Context, req *speechmodel.TTSRequest, appID, token, speaker, encoding, resourceID string) (*speechmodel.TTSResponse, error) {
	connectID := uuid.NewString()
	conn, err := s.opts.dialer.Dial(ctx, s.opts.endpoint, authHeader(appID, token, resourceID, connectID))
	if err != nil {
		return nil, fmt.Errorf("connect to TTS endpoint: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	body, uid := s.buildRequest(req, speaker, encoding)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal TTS request: %w", err)
	}
	frame, err := EncodeMessage(CreateFullClientRequest(payload, NoCompression))
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fmt.Errorf("send TTS request: %w", err)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uid
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read TTS response: %w", err)
		}
		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode TTS frame: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, _ := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			return nil, fmt.Errorf("TTS error %d: %s", msg.ErrorCode, payload)

		case AudioOnlyServerResponse:
			chunk, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("decompress audio chunk: %w", err)
			}
			audio.Write(chunk)

		case FullServerResponse:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("decompress TTS payload: %w", err)
			}

			var resp ttsServerMessage
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &resp); err != nil {
					return nil, fmt.Errorf("decode TTS payload: %w", err)
				}
				if resp.Code != 0 && resp.Code != ttsSuccessCode {
					return nil, fmt.Errorf("TTS API error %d: %s", resp.Code, resp.Message)
				}
				if resp.ReqID != "" {
					reqID = resp.ReqID
				}
				if resp.Addition.Duration != "" {
					if ms, err := strconv.ParseInt(resp.Addition.Duration, 10, 64); err == nil {
						duration = ms
					}
				}
				if resp.Data != "" {
					chunk, err := base64.StdEncoding.DecodeString(resp.Data)
					if err != nil {
						return nil, fmt.Errorf("decode base64 audio: %w", err)
					}
					audio.Write(chunk)
				}
			}

			finished := msg.Header.MessageFlags&WithEvent == WithEvent && msg.EventType == EventTypeSessionFinished
			if finished || msg.IsLastPacket() || resp.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, ErrEmptyAudio
				}
				if reqID == "" {
					reqID = connectID
				}
				return &speechmodel.TTSResponse{
					SessionID: sessionID,
					AudioData: audio.Bytes(),
					Duration:  duration,
					Format:    encoding,
					RequestID: reqID,
					CreatedAt: time.Now(),
				}, nil
			}
		}
	}
}

func (s *Synthesizer) buildRequest(req *speechmodel.TTSRequest, speaker, encoding string) (*ttsRequest, string) {
	out := &ttsRequest{}

	uid := strings.TrimSpace(req.SessionID)
	if uid == "" {
		uid = uuid.NewString()
	}
	out.User.UID = uid

	out.ReqParams.Speaker = speaker
	out.ReqParams.Text = req.Text
	out.ReqParams.AudioParams = ttsAudioParams{
		Format:          encoding,
		SampleRate:      ttsSampleRate,
		EnableTimestamp: true,
	}

	speed := req.Speed
	if speed <= 0 {
		speed = s.cfg.TTSSpeed
	}
	if speed > 0 && speed != 1 {
		out.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 {
		volume = s.cfg.TTSVolume
	}
	if volume > 0 && volume != 1 {
		out.ReqParams.AudioParams.VolumeRatio = volume
	}

	out.ReqParams.Language = strings.TrimSpace(req.Language)
	if out.ReqParams.Language == "" {
		out.ReqParams.Language = strings.TrimSpace(s.cfg.TTSLanguage)
	}
	out.ReqParams.Additions = `{"disable_markdown_filter":false}`
	return out, uid
}

func audioEncoding(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" || format == "wav" {
		return "mp3"
	}
	return format
}

// resourceCandidates lists the resource ids to try for voice, most likely first.
func resourceCandidates(voice string) []string {
	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{ttsResourceMega}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "neptune", "mercury", "pluto", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{ttsResourceSeed, ttsResourceDefault}
		}
	}
	return []string{ttsResourceDefault, ttsResourceSeed}
}

// speakerCandidates resolves aliases and returns the requested voice then the fallback,
// without case-insensitive duplicates.
func speakerCandidates(requested, fallback string) []string {
	var out []string
	add := func(voice string) {
		voice = strings.TrimSpace(voice)
		if voice == "" {
			return
		}
		if mapped, ok := voiceAliases[strings.ToLower(voice)]; ok {
			voice = mapped
		}
		for _, existing := range out {
			if strings.EqualFold(existing, voice) {
				return
			}
		}
		out = append(out, voice)
	}

	add(requested)
	add(fallback)
	if len(out) == 0 {
		out = append(out, ttsDefaultVoice)
	}
	return out
}

func isResourceMismatchError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
