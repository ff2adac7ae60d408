package handlers

import (
	"net/http"
	"time"

	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/settlement"
)

// AdminHandler serves the operational endpoints: stale-intent listing and
// the cleanup sweep. Routes using it must be gated by RequireAdmin.
type AdminHandler struct {
	reconciler *settlement.Reconciler
	staleAge   time.Duration
}

// NewAdminHandler creates an AdminHandler sweeping intents older than
// staleAge.
func NewAdminHandler(reconciler *settlement.Reconciler, staleAge time.Duration) *AdminHandler {
	return &AdminHandler{reconciler: reconciler, staleAge: staleAge}
}

type staleListResponse struct {
	Intents []models.PaymentIntent `json:"intents"`
	Count   int                    `json:"count"`
}

// ListStale handles GET /api/admin/payments/stale: open intents past the
// age threshold. Terminal intents never appear regardless of age.
func (h *AdminHandler) ListStale(w http.ResponseWriter, r *http.Request) {
	intents, err := h.reconciler.StaleIntents(r.Context(), h.staleAge)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, staleListResponse{Intents: intents, Count: len(intents)})
}

// SweepStale handles DELETE /api/admin/payments/stale: removes stale open
// intents and resets their participants so payment can be retried.
func (h *AdminHandler) SweepStale(w http.ResponseWriter, r *http.Request) {
	removed, err := h.reconciler.SweepStale(r.Context(), h.staleAge)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
