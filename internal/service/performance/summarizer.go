// Package performance turns learner metrics into an encouraging summary.
package performance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	perfmodel "github.com/educhain/assistant/backend/internal/model/performance"
	"github.com/educhain/assistant/backend/internal/service/completion"
	"github.com/educhain/assistant/backend/internal/service/prompt"
	"github.com/educhain/assistant/backend/pkg/log"
)

// FallbackSummary replaces the summary when generation fails.
const FallbackSummary = "Unable to generate performance summary at this time."

// Summary is the outcome of one Summarize call.
type Summary struct {
	Text     string `json:"summary"`
	Fallback bool   `json:"fallback"`
	Cached   bool   `json:"cached"`
}

// Summarizer asks the completion backend for performance summaries.
type Summarizer struct {
	completer completion.Completer
	cache     Cache
	ttl       time.Duration
}

// NewSummarizer creates a summarizer; cache may be nil.
func NewSummarizer(completer completion.Completer, cache Cache, ttl time.Duration) *Summarizer {
	return &Summarizer{completer: completer, cache: cache, ttl: ttl}
}

// Summarize never fails: a backend error yields FallbackSummary and cache errors are
// only logged.
func (s *Summarizer) Summarize(ctx context.Context, snapshot perfmodel.Snapshot) Summary {
	l := log.Ctx(ctx)
	text := prompt.Performance(snapshot)
	key := digest(text)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			return Summary{Text: cached, Cached: true}
		case !errors.Is(err, ErrCacheMiss):
			l.Warn().Err(err).Msg("summary cache lookup failed")
		}
	}

	reply, err := s.completer.Complete(ctx, text)
	if err != nil || strings.TrimSpace(reply) == "" {
		l.Error().Err(err).Msg("performance summary generation failed")
		return Summary{Text: FallbackSummary, Fallback: true}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, reply, s.ttl); err != nil {
			l.Warn().Err(err).Msg("summary cache store failed")
		}
	}
	return Summary{Text: reply}
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
