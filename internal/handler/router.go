package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/educhain/assistant/backend/internal/handler/chat"
	"github.com/educhain/assistant/backend/internal/handler/performance"
	profilehandler "github.com/educhain/assistant/backend/internal/handler/profile"
	"github.com/educhain/assistant/backend/internal/handler/speech"
	"github.com/educhain/assistant/backend/internal/handler/stream"
	"github.com/educhain/assistant/backend/internal/handler/wallet"
	"github.com/educhain/assistant/backend/internal/model/profile"
	"github.com/educhain/assistant/backend/internal/service/assistant"
	chatService "github.com/educhain/assistant/backend/internal/service/chat"
	performanceService "github.com/educhain/assistant/backend/internal/service/performance"
	speechService "github.com/educhain/assistant/backend/internal/service/speech"
	walletService "github.com/educhain/assistant/backend/internal/service/wallet"
	"github.com/educhain/assistant/backend/pkg/log"
)

// Services bundles what the HTTP layer is wired to. Summarizer, Speech and Wallet are
// optional; their routes answer 503 when missing.
type Services struct {
	Profiles    profile.Store
	Chat        *chatService.Service
	Assistants  *assistant.Manager
	Summarizer  *performanceService.Summarizer
	Speech      *speechService.Service
	Wallet      *walletService.Service
	CORSOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	origins := svc.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", log.HeaderRequestID},
		ExposedHeaders: []string{log.HeaderRequestID},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.HTTPMiddleware(log.L()))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		profilehandler.New(svc.Profiles).RegisterRoutes(api)
		chat.New(svc.Chat, svc.Assistants).RegisterRoutes(api)
		stream.New(svc.Assistants).RegisterRoutes(api)
		performance.New(svc.Summarizer).RegisterRoutes(api)
		wallet.New(svc.Wallet).RegisterRoutes(api)

		var speechSvc speech.SpeechService
		if svc.Speech != nil {
			speechSvc = speech.Adapt(svc.Speech)
		}
		speech.New(speechSvc, svc.Chat, svc.Assistants).RegisterRoutes(api)
	})

	return r
}
