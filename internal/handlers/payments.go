package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mkotov/splitton/internal/middleware"
	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/settlement"
	"github.com/mkotov/splitton/internal/storage"
)

// PaymentHandler serves the payment intent and reconciliation endpoints.
type PaymentHandler struct {
	store      storage.Store
	issuer     *settlement.Issuer
	reconciler *settlement.Reconciler
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(store storage.Store, issuer *settlement.Issuer, reconciler *settlement.Reconciler) *PaymentHandler {
	return &PaymentHandler{store: store, issuer: issuer, reconciler: reconciler}
}

type createIntentRequest struct {
	BillID string `json:"billId"`
}

type createIntentResponse struct {
	PaymentID string          `json:"paymentId"`
	Provider  models.Currency `json:"provider"`
	Deeplink  string          `json:"deeplink"`
	ExpiresAt int64           `json:"expiresAt"`
}

// CreateIntent handles POST /api/payments/intent.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequestf("invalid request body"))
		return
	}
	if req.BillID == "" {
		writeError(w, badRequestf("billId is required"))
		return
	}

	intent, err := h.issuer.CreateIntent(r.Context(), req.BillID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createIntentResponse{
		PaymentID: intent.ID,
		Provider:  intent.Provider,
		Deeplink:  intent.Deeplink,
		// Advisory client-facing expiry; not enforced by the reconciler.
		ExpiresAt: intent.CreatedAt + int64(settlement.IntentTTL/time.Second),
	})
}

type checkResponse struct {
	Confirmed bool                `json:"confirmed"`
	Status    models.IntentStatus `json:"status"`
}

// Check handles POST /api/payments/{paymentID}/check, the manual
// "check now" entry point. A transient indexer blip surfaces as
// confirmed=false, never as an error: the payer must not read a blip as
// a failed payment.
func (h *PaymentHandler) Check(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["paymentID"]

	confirmed, err := h.reconciler.ReconcileOne(r.Context(), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}

	intent, err := h.store.GetIntent(r.Context(), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{Confirmed: confirmed, Status: intent.Status})
}

type paymentDetails struct {
	Intent      *models.PaymentIntent `json:"payment"`
	Participant *models.Participant   `json:"participant"`
	Bill        billSummary           `json:"bill"`
}

type billSummary struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	TotalAmount string            `json:"total_amount"`
	Currency    models.Currency   `json:"currency"`
	Status      models.BillStatus `json:"status"`
}

// Get handles GET /api/payments/{paymentID}. Access is restricted to the
// paying participant and the bill creator.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["paymentID"]
	userID := middleware.GetUserID(r.Context())

	intent, err := h.store.GetIntent(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, settlement.ErrPaymentNotFound)
			return
		}
		writeError(w, err)
		return
	}

	participant, err := h.store.GetParticipant(r.Context(), intent.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	bill, err := h.store.GetBill(r.Context(), intent.BillID)
	if err != nil {
		writeError(w, err)
		return
	}

	if userID != participant.UserID && userID != bill.CreatorID {
		writeError(w, settlement.ErrForbidden)
		return
	}

	writeJSON(w, http.StatusOK, paymentDetails{
		Intent:      intent,
		Participant: participant,
		Bill: billSummary{
			ID:          bill.ID,
			Title:       bill.Title,
			TotalAmount: bill.TotalAmount.String(),
			Currency:    bill.Currency,
			Status:      bill.Status,
		},
	})
}

type webhookRequest struct {
	ExternalID string `json:"externalId"`
	Status     string `json:"status"`
}

// Webhook handles POST /api/payments/webhook/{provider}: the push-based
// confirmation path for providers that support callbacks. Replays are
// no-ops; the polling and push paths converge on the same state machine.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequestf("invalid request body"))
		return
	}
	if req.ExternalID == "" || req.Status == "" {
		writeError(w, badRequestf("externalId and status are required"))
		return
	}

	intent, err := h.reconciler.ConfirmExternal(r.Context(), req.ExternalID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": intent.Status})
}
