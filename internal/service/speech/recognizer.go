package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
	"github.com/educhain/assistant/backend/pkg/log"
)

const (
	// nostream answers once the upload ends; async streams interim results both ways.
	asrEndpoint           = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"
	asrStreamEndpoint     = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_async"
	asrResourceDuration   = "volc.bigasr.sauc.duration"
	asrResourceConcurrent = "volc.bigasr.sauc.concurrent"

	// 200ms of 16kHz 16bit mono PCM.
	asrChunkSize     = 6400
	asrChunkInterval = 200 * time.Millisecond

	asrSuccessCode = 20000000
)

// ErrNoAudio is returned when the audio source is empty.
var ErrNoAudio = errors.New("no audio data to send")

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Definite  bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info"`
}

// Recognizer streams audio to the Volcengine big-model ASR endpoint.
type Recognizer struct {
	cfg  *speechmodel.SpeechConfig
	opts clientOptions
}

// NewRecognizer creates a recognizer for cfg.
func NewRecognizer(cfg *speechmodel.SpeechConfig, opts ...Option) *Recognizer {
	return &Recognizer{cfg: cfg, opts: buildOptions(asrEndpoint, asrStreamEndpoint, opts)}
}

// Recognize uploads audio and publishes every interim and final result set on events.
// events is closed when Recognize returns.
func (r *Recognizer) Recognize(ctx context.Context, audio io.Reader, events chan<- speechmodel.RecognitionEvent) error {
	defer close(events)

	req := &speechmodel.ASRRequest{
		SessionID: uuid.NewString(),
		AudioData: audio,
		Format:    "pcm",
	}
	_, err := r.run(ctx, r.opts.streamEndpoint, req, func(event speechmodel.RecognitionEvent) error {
		select {
		case events <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return err
}

// Transcribe recognizes a finite clip and returns the final transcript.
func (r *Recognizer) Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	return r.run(ctx, r.opts.endpoint, req, nil)
}

func (r *Recognizer) run(ctx context.Context, endpoint string, req *speechmodel.ASRRequest, emit func(speechmodel.RecognitionEvent) error) (*speechmodel.ASRResponse, error) {
	appID, token, err := resolveCredentials(r.cfg)
	if err != nil {
		return nil, err
	}

	resourceID := asrResourceDuration
	if r.cfg.ConcurrentMode {
		resourceID = asrResourceConcurrent
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	conn, err := r.opts.dialer.Dial(ctx, endpoint, authHeader(appID, token, resourceID, req.SessionID))
	if err != nil {
		return nil, fmt.Errorf("connect to ASR endpoint: %w", err)
	}
	defer conn.Close()

	if err := r.sendRequest(conn, req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		resp *speechmodel.ASRResponse
		err  error
	}
	recvCh := make(chan outcome, 1)
	go func() {
		resp, err := r.receive(ctx, conn, req.SessionID, emit)
		recvCh <- outcome{resp, err}
	}()

	// The sender may stay blocked on a live source after the server has finished; closing
	// the connection on return makes its next write fail.
	sendCh := make(chan error, 1)
	go func() {
		sendCh <- r.sendAudio(ctx, conn, req.AudioData)
	}()

	for {
		select {
		case err := <-sendCh:
			if err != nil {
				return nil, fmt.Errorf("send audio: %w", err)
			}
			sendCh = nil
		case out := <-recvCh:
			return out.resp, out.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Recognizer) sendRequest(conn *websocket.Conn, req *speechmodel.ASRRequest) error {
	payload, err := json.Marshal(r.buildRequest(req))
	if err != nil {
		return fmt.Errorf("marshal ASR request: %w", err)
	}
	compressed, err := CompressPayload(payload, GzipCompression)
	if err != nil {
		return err
	}
	frame, err := EncodeMessage(CreateFullClientRequest(compressed, GzipCompression))
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("send ASR request: %w", err)
	}
	return nil
}

func (r *Recognizer) buildRequest(req *speechmodel.ASRRequest) *asrRequest {
	out := &asrRequest{}
	out.User.UID = req.SessionID

	out.Audio.Format = req.Format
	if out.Audio.Format == "" {
		out.Audio.Format = "wav"
	}
	out.Audio.Language = req.Language
	if out.Audio.Language == "" {
		out.Audio.Language = r.cfg.ASRLanguage
	}
	if out.Audio.Language == "" {
		out.Audio.Language = "en-US"
	}
	out.Audio.Codec = "raw"
	out.Audio.Rate = 16000
	out.Audio.Bits = 16
	out.Audio.Channel = 1

	out.Request.ModelName = "bigmodel"
	out.Request.EnableITN = true
	out.Request.EnablePunc = true
	out.Request.ShowUtterances = true
	out.Request.ResultType = "full"
	out.Request.EndWindowSize = 800
	return out
}

func (r *Recognizer) sendAudio(ctx context.Context, conn *websocket.Conn, audio io.Reader) error {
	if audio == nil {
		return ErrNoAudio
	}

	buf := make([]byte, asrChunkSize)
	// Sequence 1 belongs to the full client request.
	seq := int32(2)
	for {
		n, err := io.ReadFull(audio, buf)
		last := false
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			last = true
		default:
			return fmt.Errorf("read audio: %w", err)
		}
		if last && n == 0 && seq == 2 {
			return ErrNoAudio
		}

		compressed, err := CompressPayload(buf[:n], GzipCompression)
		if err != nil {
			return err
		}
		frame, err := EncodeMessage(CreateAudioOnlyRequest(compressed, seq, last, GzipCompression))
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("send audio chunk: %w", err)
		}
		if last {
			return nil
		}
		seq++

		if r.opts.chunkInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.opts.chunkInterval):
			}
		}
	}
}

func (r *Recognizer) receive(ctx context.Context, conn *websocket.Conn, sessionID string, emit func(speechmodel.RecognitionEvent) error) (*speechmodel.ASRResponse, error) {
	l := log.Ctx(ctx)
	var (
		text     string
		duration int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read ASR response: %w", err)
		}
		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode ASR frame: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, _ := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			return nil, fmt.Errorf("ASR error %d: %s", msg.ErrorCode, payload)

		case FullServerResponse:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("decompress ASR payload: %w", err)
			}

			var resp asrServerMessage
			if err := json.Unmarshal(payload, &resp); err != nil {
				l.Warn().Err(err).Msg("skipping undecodable ASR payload")
				continue
			}
			if resp.Code != 0 && resp.Code != asrSuccessCode {
				return nil, fmt.Errorf("ASR API error %d: %s", resp.Code, resp.Message)
			}

			last := msg.IsLastPacket() || resp.Sequence < 0
			event := toRecognitionEvent(resp, last)
			if len(event.Results) > 0 {
				if t := joinUtterances(resp); t != "" {
					text = t
				}
				if emit != nil {
					if err := emit(event); err != nil {
						return nil, err
					}
				}
			}
			if resp.AudioInfo.Duration > 0 {
				duration = resp.AudioInfo.Duration
			}

			if last {
				return &speechmodel.ASRResponse{
					SessionID:  sessionID,
					Text:       text,
					Confidence: estimateConfidence(text),
					Duration:   duration,
					RequestID:  sessionID,
					CreatedAt:  time.Now(),
				}, nil
			}
		}
	}
}

// toRecognitionEvent maps the full utterance list of one response to a result list.
// Responses without utterances become a single result carrying the whole text.
func toRecognitionEvent(resp asrServerMessage, last bool) speechmodel.RecognitionEvent {
	var event speechmodel.RecognitionEvent
	for _, u := range resp.Result.Utterances {
		event.Results = append(event.Results, speechmodel.RecognitionResult{
			Alternatives: []speechmodel.Alternative{{Transcript: u.Text, Confidence: estimateConfidence(u.Text)}},
			Final:        u.Definite || last,
		})
	}
	if len(event.Results) == 0 && resp.Result.Text != "" {
		event.Results = []speechmodel.RecognitionResult{{
			Alternatives: []speechmodel.Alternative{{Transcript: resp.Result.Text, Confidence: estimateConfidence(resp.Result.Text)}},
			Final:        last,
		}}
	}
	return event
}

func joinUtterances(resp asrServerMessage) string {
	if resp.Result.Text != "" {
		return resp.Result.Text
	}
	parts := make([]string, 0, len(resp.Result.Utterances))
	for _, u := range resp.Result.Utterances {
		parts = append(parts, u.Text)
	}
	return strings.Join(parts, " ")
}

func estimateConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.95
}
