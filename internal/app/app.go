// Package app assembles the services described by a Config.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/educhain/assistant/backend/internal/config"
	"github.com/educhain/assistant/backend/internal/handler"
	"github.com/educhain/assistant/backend/internal/model/profile"
	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
	"github.com/educhain/assistant/backend/internal/service/assistant"
	chatsvc "github.com/educhain/assistant/backend/internal/service/chat"
	"github.com/educhain/assistant/backend/internal/service/completion"
	"github.com/educhain/assistant/backend/internal/service/performance"
	speechsvc "github.com/educhain/assistant/backend/internal/service/speech"
	walletsvc "github.com/educhain/assistant/backend/internal/service/wallet"
	"github.com/educhain/assistant/backend/pkg/log"
)

const cachePrefix = "educhain"

// App holds the wired services. Speech and Wallet are nil when not configured.
type App struct {
	Config     *config.Config
	Profiles   profile.Store
	Profile    profile.Profile
	Chat       *chatsvc.Service
	Completer  completion.Completer
	Assistants *assistant.Manager
	Speech     *speechsvc.Service
	Summarizer *performance.Summarizer
	Wallet     *walletsvc.Service

	closers []func() error
}

// New builds every service from cfg. Missing credentials disable the matching feature
// instead of failing; only a broken backend configuration is an error.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	l := log.Component("app")

	profiles := profile.NewMemoryStore(profile.Seed())
	active, ok := profiles.FindByID(cfg.Assistant.Profile)
	if !ok {
		l.Warn().Str("profile", cfg.Assistant.Profile).Msg("unknown profile, using default")
		active, _ = profiles.FindByID(profile.DefaultID)
	}

	a := &App{
		Config:   cfg,
		Profiles: profiles,
		Profile:  active,
		Chat:     chatsvc.NewService(profiles, cfg.Assistant.SeedGreeting),
	}

	completer, err := newCompleter(ctx, cfg, active)
	if err != nil {
		return nil, err
	}
	a.Completer = completer

	a.Assistants = assistant.NewManager(a.Chat, completer, assistant.ManagerOptions{
		FramePrompt:   cfg.Assistant.FramePrompt,
		SpeechEnabled: cfg.Assistant.SpeechEnabled,
	})

	if cfg.Speech.Enabled {
		a.Speech = speechsvc.NewService(SpeechConfig(cfg.Speech))
		l.Info().Msg("speech service initialized")
	} else {
		l.Info().Msg("speech credentials not configured, speech disabled")
	}

	var cache performance.Cache
	if cfg.Cache.Enabled() {
		redisCache, err := performance.NewRedisCache(ctx, cfg.Cache, cachePrefix)
		if err != nil {
			l.Warn().Err(err).Msg("summary cache unavailable, continuing without it")
		} else {
			cache = redisCache
			a.closers = append(a.closers, redisCache.Close)
		}
	}
	a.Summarizer = performance.NewSummarizer(completer, cache, cfg.Cache.SummaryTTL)

	if cfg.Wallet.Enabled() {
		a.Wallet = walletsvc.NewService(walletsvc.NewRPCProvider(cfg.Wallet))
		l.Info().Str("rpc_url", cfg.Wallet.RPCURL).Msg("wallet provider configured")
	}

	return a, nil
}

func newCompleter(ctx context.Context, cfg *config.Config, active profile.Profile) (completion.Completer, error) {
	l := log.Component("app")

	switch cfg.Assistant.Backend {
	case config.BackendArk:
		if !cfg.Ark.Enabled() {
			l.Warn().Msg("ark credentials not configured, replies will use the fallback message")
			return completion.Unavailable{}, nil
		}
		c, err := completion.NewArkCompleter(ctx, cfg.Ark, active.Context)
		if err != nil {
			return nil, err
		}
		l.Info().Str("model", cfg.Ark.Model).Msg("ark completion backend initialized")
		return c, nil
	default:
		if !cfg.Gemini.Enabled() {
			l.Warn().Msg("GEMINI_API_KEY not configured, replies will use the fallback message")
			return completion.Unavailable{}, nil
		}
		l.Info().Str("model", cfg.Gemini.Model).Msg("gemini completion backend initialized")
		return completion.NewGeminiClient(cfg.Gemini), nil
	}
}

// SpeechConfig converts the loaded speech section into the client configuration.
func SpeechConfig(cfg config.SpeechConfig) *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		AppID:          cfg.AppID,
		AccessToken:    cfg.AccessToken,
		Region:         cfg.Region,
		ConcurrentMode: cfg.ConcurrentMode,
		ASRLanguage:    cfg.ASRLanguage,
		TTSVoice:       cfg.TTSVoice,
		TTSSpeed:       cfg.TTSSpeed,
		TTSVolume:      cfg.TTSVolume,
		TTSLanguage:    cfg.TTSLanguage,
		Timeout:        cfg.Timeout,
	}
}

// Router returns the HTTP API over the wired services.
func (a *App) Router() http.Handler {
	return handler.NewRouter(handler.Services{
		Profiles:    a.Profiles,
		Chat:        a.Chat,
		Assistants:  a.Assistants,
		Summarizer:  a.Summarizer,
		Speech:      a.Speech,
		Wallet:      a.Wallet,
		CORSOrigins: a.Config.Server.CORSOrigins,
	})
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}
