package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/educhain/assistant/backend/internal/config"
	"github.com/educhain/assistant/backend/pkg/log"
)

// apiKeyHeader carries the credential; it is never put in the query string.
const apiKeyHeader = "x-goog-api-key"

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiClient calls the generateContent endpoint.
type GeminiClient struct {
	client  *resty.Client
	model   string
	gen     *generationConfig
	limiter *rate.Limiter
}

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(cfg config.GeminiConfig) *GeminiClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader(apiKeyHeader, cfg.APIKey)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &GeminiClient{
		client:  client,
		model:   cfg.Model,
		gen:     buildGenerationConfig(cfg),
		limiter: limiter,
	}
}

func buildGenerationConfig(cfg config.GeminiConfig) *generationConfig {
	gen := &generationConfig{}
	if cfg.Temperature > 0 {
		gen.Temperature = &cfg.Temperature
	}
	if cfg.TopK > 0 {
		gen.TopK = &cfg.TopK
	}
	if cfg.TopP > 0 {
		gen.TopP = &cfg.TopP
	}
	if cfg.MaxOutputTokens > 0 {
		gen.MaxOutputTokens = &cfg.MaxOutputTokens
	}
	if gen.Temperature == nil && gen.TopK == nil && gen.TopP == nil && gen.MaxOutputTokens == nil {
		return nil
	}
	return gen
}

// Complete sends prompt as the only content unit and returns the first candidate's text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: c.gen,
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/models/%s:generateContent", c.model))
	if err != nil {
		return "", fmt.Errorf("send generateContent request: %w", err)
	}

	if !res.IsSuccess() {
		return "", &StatusError{Code: res.StatusCode(), Body: truncate(res.String(), 512)}
	}

	text, err := extractText(res.Body())
	if err != nil {
		return "", err
	}

	l := log.Ctx(ctx)
	l.Debug().
		Str("model", c.model).
		Int("length", len(text)).
		Msg("gemini completion received")
	return text, nil
}

func extractText(raw []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	first := resp.Candidates[0].Content
	if first == nil || len(first.Parts) == 0 || first.Parts[0].Text == nil {
		return "", fmt.Errorf("%w: candidate has no text part", ErrMalformedResponse)
	}
	if *first.Parts[0].Text == "" {
		return "", fmt.Errorf("%w: candidate text is empty", ErrMalformedResponse)
	}
	return *first.Parts[0].Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
