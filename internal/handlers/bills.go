package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/mkotov/splitton/internal/calculator"
	"github.com/mkotov/splitton/internal/middleware"
	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/settlement"
	"github.com/mkotov/splitton/internal/storage"
)

// BillHandler serves bill creation and retrieval.
type BillHandler struct {
	store storage.Store
}

// NewBillHandler creates a BillHandler.
func NewBillHandler(store storage.Store) *BillHandler {
	return &BillHandler{store: store}
}

type participantRequest struct {
	TelegramUserID   int64  `json:"telegramUserId,omitempty"`
	TelegramUsername string `json:"telegramUsername,omitempty"`
	Name             string `json:"name,omitempty"`
	ShareAmount      string `json:"shareAmount,omitempty"`
	IsPayer          bool   `json:"isPayer,omitempty"`
}

type createBillRequest struct {
	Title        string               `json:"title"`
	TotalAmount  string               `json:"totalAmount"`
	Currency     models.Currency      `json:"currency"`
	SplitMode    models.SplitMode     `json:"splitMode"`
	Participants []participantRequest `json:"participants"`
}

// Create handles POST /api/bills. Split arithmetic is validated here,
// before any payment intent can ever be issued: EQUAL mode computes equal
// round-up shares, CUSTOM mode validates the caller's shares against the
// total.
func (h *BillHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequestf("invalid request body"))
		return
	}

	bill, err := h.buildBill(&req, middleware.GetUserID(r.Context()), middleware.GetTelegramID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.CreateBill(r.Context(), bill); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("bill created",
		"bill_id", bill.ID,
		"total", bill.TotalAmount.String(),
		"currency", bill.Currency,
		"participants", len(bill.Participants),
	)
	writeJSON(w, http.StatusCreated, bill)
}

func (h *BillHandler) buildBill(req *createBillRequest, creatorID string, creatorTelegramID int64) (*models.Bill, error) {
	if !req.Currency.Valid() {
		return nil, badRequestf("currency must be TON or USDT")
	}
	if req.SplitMode != models.SplitEqual && req.SplitMode != models.SplitCustom {
		return nil, badRequestf("splitMode must be EQUAL or CUSTOM")
	}
	if len(req.Participants) == 0 {
		return nil, badRequestf("at least one participant is required")
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil || !total.IsPositive() {
		return nil, badRequestf("totalAmount must be a positive decimal")
	}

	shares := make([]decimal.Decimal, len(req.Participants))
	switch req.SplitMode {
	case models.SplitEqual:
		if shares, err = calculator.ComputeEqualShares(total, len(req.Participants)); err != nil {
			return nil, badRequestf("%v", err)
		}
	case models.SplitCustom:
		for i, p := range req.Participants {
			if shares[i], err = decimal.NewFromString(p.ShareAmount); err != nil {
				return nil, badRequestf("participant %d: shareAmount must be a decimal", i)
			}
		}
		if err := calculator.ValidateCustomSplit(total, shares); err != nil {
			return nil, badRequestf("%v", err)
		}
	}

	bill := &models.Bill{
		Title:       req.Title,
		CreatorID:   creatorID,
		TotalAmount: total,
		Currency:    req.Currency,
		SplitMode:   req.SplitMode,
		Status:      models.BillOpen,
	}

	payers := 0
	for i, p := range req.Participants {
		if p.TelegramUserID == 0 && p.TelegramUsername == "" && p.Name == "" {
			return nil, badRequestf("participant %d: an identity is required", i)
		}
		if p.IsPayer {
			payers++
		}
		participant := models.Participant{
			TelegramUserID:   p.TelegramUserID,
			TelegramUsername: p.TelegramUsername,
			Name:             p.Name,
			ShareAmount:      shares[i],
			PaymentStatus:    models.PaymentPending,
			IsPayer:          p.IsPayer,
		}
		// The creator's own entry is resolved immediately.
		if p.TelegramUserID != 0 && p.TelegramUserID == creatorTelegramID {
			participant.UserID = creatorID
		}
		bill.Participants = append(bill.Participants, participant)
	}
	if payers > 1 {
		return nil, badRequestf("at most one participant may be the payer")
	}

	if err := bill.ValidateShares(); err != nil {
		return nil, badRequestf("%v", err)
	}
	return bill, nil
}

// Get handles GET /api/bills/{billID}. Visible to the creator and to
// resolved participants.
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	bill, err := h.loadBillAuthorized(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// Delete handles DELETE /api/bills/{billID}. Only the creator may delete,
// and only before any share has been paid.
func (h *BillHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bill, err := h.loadBillAuthorized(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if bill.CreatorID != middleware.GetUserID(r.Context()) {
		writeError(w, settlement.ErrForbidden)
		return
	}
	for _, p := range bill.Participants {
		if p.PaymentStatus == models.PaymentPaid {
			writeError(w, settlement.ErrAlreadyPaid)
			return
		}
	}

	if err := h.store.DeleteBill(r.Context(), bill.ID); err != nil {
		writeError(w, err)
		return
	}
	slog.Info("bill deleted", "bill_id", bill.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *BillHandler) loadBillAuthorized(r *http.Request) (*models.Bill, error) {
	billID := mux.Vars(r)["billID"]
	userID := middleware.GetUserID(r.Context())

	bill, err := h.store.GetBill(r.Context(), billID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, settlement.ErrBillNotFound
		}
		return nil, err
	}

	if bill.CreatorID == userID {
		return bill, nil
	}
	for _, p := range bill.Participants {
		if p.UserID == userID {
			return bill, nil
		}
	}
	return nil, settlement.ErrForbidden
}
