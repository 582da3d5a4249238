package performance

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	perfmodel "github.com/educhain/assistant/backend/internal/model/performance"
	"github.com/educhain/assistant/backend/internal/service/performance"
	"github.com/educhain/assistant/backend/pkg/utils"
)

// Handler turns learner counters into a written summary.
type Handler struct {
	summarizer *performance.Summarizer
}

// New creates a performance handler. A nil summarizer disables the route.
func New(summarizer *performance.Summarizer) *Handler {
	return &Handler{summarizer: summarizer}
}

// RegisterRoutes registers the summary route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/performance/summary", h.handleSummary)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if h.summarizer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "performance summary unavailable")
		return
	}

	var snapshot perfmodel.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.summarizer.Summarize(r.Context(), snapshot))
}
