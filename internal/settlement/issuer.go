// Package settlement implements the payment settlement core: issuing
// payment intents, reconciling them against observed chain transfers, and
// sweeping stale ones.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkotov/splitton/internal/metrics"
	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/storage"
	"github.com/mkotov/splitton/internal/ton"
)

// IntentTTL is the client-facing expiry communicated with a fresh intent.
// It is advisory: the reconciler keeps matching past it, and only the
// administrative stale sweep actually removes old intents.
const IntentTTL = 15 * time.Minute

// Issuer creates payment intents for participants' shares.
type Issuer struct {
	store storage.Store
}

// NewIssuer creates an Issuer backed by the given store.
func NewIssuer(store storage.Store) *Issuer {
	return &Issuer{store: store}
}

// CreateIntent issues a payment intent for the caller's share of a bill.
//
// Preconditions are checked in order, each with a distinct failure:
// bill exists, the caller is a participant of it, the share is not
// already paid, no open intent exists, and the bill creator has a wallet
// configured. The share amount is snapshotted into the intent, so later
// share edits never change what an issued deep link asks for.
//
// The open-intent check is not atomic against a concurrent duplicate
// call; the storage uniqueness constraint backstops the race and the
// loser gets ErrPaymentInProgress.
func (i *Issuer) CreateIntent(ctx context.Context, billID, userID string) (*models.PaymentIntent, error) {
	bill, err := i.store.GetBill(ctx, billID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("load bill: %w", err)
	}

	participant, err := i.store.FindParticipantByUser(ctx, billID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("find participant: %w", err)
	}

	if participant.PaymentStatus == models.PaymentPaid {
		return nil, ErrAlreadyPaid
	}

	if participant.PaymentID != "" {
		open, err := i.store.GetIntent(ctx, participant.PaymentID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load current intent: %w", err)
		}
		if err == nil && open.Status.Open() {
			return nil, ErrPaymentInProgress
		}
	}

	creator, err := i.store.GetUser(ctx, bill.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("load bill creator: %w", err)
	}
	if creator.WalletAddress == "" {
		return nil, ErrWalletNotConfigured
	}

	memo := ton.PaymentMemo(bill.ID, bill.Currency)
	intent := &models.PaymentIntent{
		ID:            uuid.New().String(),
		BillID:        bill.ID,
		ParticipantID: participant.ID,
		Provider:      bill.Currency,
		Amount:        participant.ShareAmount,
		Deeplink:      ton.TransferLink(creator.WalletAddress, participant.ShareAmount, memo),
		ExternalID:    uuid.New().String(),
		Status:        models.IntentCreated,
		CreatedAt:     time.Now().Unix(),
	}

	if err := i.store.CreateIntent(ctx, intent); err != nil {
		if errors.Is(err, storage.ErrOpenIntentExists) {
			return nil, ErrPaymentInProgress
		}
		return nil, fmt.Errorf("persist intent: %w", err)
	}

	// PENDING here means "a payment request exists", distinct from the
	// chain-confirmed PAID.
	if err := i.store.SetParticipantPayment(ctx, participant.ID, models.PaymentPending, intent.ID); err != nil {
		return nil, fmt.Errorf("link intent to participant: %w", err)
	}

	metrics.IntentsCreated.WithLabelValues(string(intent.Provider)).Inc()
	slog.Info("payment intent created",
		"intent_id", intent.ID,
		"bill_id", bill.ID,
		"participant_id", participant.ID,
		"amount", intent.Amount.String(),
		"provider", intent.Provider,
	)
	return intent, nil
}
