package wallet

import (
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/educhain/assistant/backend/internal/service/wallet"
	"github.com/educhain/assistant/backend/pkg/log"
	"github.com/educhain/assistant/backend/pkg/utils"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Handler exposes the read-only wallet view.
type Handler struct {
	wallet *wallet.Service
}

// New creates a wallet handler. A nil service disables the routes.
func New(svc *wallet.Service) *Handler {
	return &Handler{wallet: svc}
}

// RegisterRoutes registers the wallet routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/wallet", func(wr chi.Router) {
		wr.Use(h.requireService)
		wr.Get("/network", h.handleNetwork)
		wr.Get("/accounts", h.handleAccounts)
		wr.Get("/{address}", h.handleAccount)
	})
}

func (h *Handler) requireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.wallet == nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "wallet provider unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleNetwork(w http.ResponseWriter, r *http.Request) {
	network, err := h.wallet.Network(r.Context())
	if err != nil {
		h.respondProviderError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, network)
}

func (h *Handler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.wallet.Accounts(r.Context())
	if err != nil {
		h.respondProviderError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string][]string{"accounts": accounts})
}

func (h *Handler) handleAccount(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !addressPattern.MatchString(address) {
		utils.RespondError(w, http.StatusBadRequest, "invalid address")
		return
	}

	account, err := h.wallet.Account(r.Context(), address)
	if err != nil {
		h.respondProviderError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, account)
}

func (h *Handler) respondProviderError(w http.ResponseWriter, r *http.Request, err error) {
	l := log.Ctx(r.Context())
	l.Error().Err(err).Msg("wallet provider request failed")
	utils.RespondError(w, http.StatusBadGateway, "wallet provider request failed")
}
