package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkotov/splitton/internal/metrics"
	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/notify"
	"github.com/mkotov/splitton/internal/storage"
	"github.com/mkotov/splitton/internal/ton"
)

const (
	// recentTransferLimit is how many of the newest transfers the
	// reconciler inspects per address.
	recentTransferLimit = 10

	// defaultQueryTimeout bounds a single indexer call so the manual
	// "check now" path never hangs.
	defaultQueryTimeout = 10 * time.Second

	// defaultInterCallDelay spaces out indexer calls during a batch
	// sweep to respect rate limits.
	defaultInterCallDelay = time.Second
)

// amountTolerance is the absolute tolerance when comparing an observed
// transfer against an intent's amount. Covers fee and rounding noise.
var amountTolerance = decimal.NewFromFloat(0.001)

// ChainIndexer is the read-only contract the reconciler needs from a
// chain indexing service. The service is external and may be unavailable
// at any time; errors are treated as "no data this cycle".
type ChainIndexer interface {
	ListRecentTransfers(ctx context.Context, address string, limit int) ([]ton.Transfer, error)
}

// Reconciler matches open payment intents against observed chain
// transfers and drives them to their terminal state.
//
// Every path through the reconciler is idempotent per intent: a terminal
// intent is never touched again, so overlapping runs (two schedules, a
// manual check, a webhook replay) are a tolerated inefficiency rather
// than a correctness hazard.
type Reconciler struct {
	store    storage.Store
	indexer  ChainIndexer
	notifier notify.Notifier

	queryTimeout   time.Duration
	interCallDelay time.Duration
}

// NewReconciler creates a Reconciler. notifier may be notify.Discard{}.
func NewReconciler(store storage.Store, indexer ChainIndexer, notifier notify.Notifier) *Reconciler {
	return &Reconciler{
		store:          store,
		indexer:        indexer,
		notifier:       notifier,
		queryTimeout:   defaultQueryTimeout,
		interCallDelay: defaultInterCallDelay,
	}
}

// ReconcileOne attempts to confirm a single intent against the chain.
// It returns true only when this call transitioned the intent to
// CONFIRMED. An already-terminal intent, a missing wallet, an unreachable
// indexer, or an amount mismatch all return false without error; only a
// missing intent or a persistence failure surface as errors.
func (r *Reconciler) ReconcileOne(ctx context.Context, intentID string) (bool, error) {
	intent, err := r.store.GetIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, ErrPaymentNotFound
		}
		return false, fmt.Errorf("load intent: %w", err)
	}

	// Idempotence guard: resolved intents are never reprocessed and
	// never re-notified.
	if intent.Status.Terminal() {
		return false, nil
	}

	bill, err := r.store.GetBill(ctx, intent.BillID)
	if err != nil {
		return false, fmt.Errorf("load bill: %w", err)
	}
	creator, err := r.store.GetUser(ctx, bill.CreatorID)
	if err != nil {
		return false, fmt.Errorf("load bill creator: %w", err)
	}
	if creator.WalletAddress == "" {
		slog.Warn("cannot reconcile intent, creator wallet not configured",
			"intent_id", intent.ID, "bill_id", bill.ID)
		return false, nil
	}

	transfer, ok := r.findMatch(ctx, intent, creator.WalletAddress)
	if !ok {
		return false, nil
	}

	amount := ton.FromNano(transfer.ValueBaseUnits)
	if amount.Sub(intent.Amount).Abs().Cmp(amountTolerance) > 0 {
		slog.Debug("transfer amount outside tolerance",
			"intent_id", intent.ID,
			"want", intent.Amount.String(),
			"got", amount.String(),
		)
		return false, nil
	}

	confirmed, err := r.store.ConfirmIntent(ctx, intent.ID, transfer.Timestamp)
	if err != nil {
		return false, fmt.Errorf("confirm intent: %w", err)
	}
	if !confirmed {
		// A concurrent run or the webhook got there first.
		return false, nil
	}

	metrics.IntentsConfirmed.WithLabelValues(string(intent.Provider)).Inc()
	slog.Info("payment intent confirmed",
		"intent_id", intent.ID,
		"bill_id", intent.BillID,
		"participant_id", intent.ParticipantID,
		"tx_hash", transfer.Hash,
	)

	r.notifier.Publish(ctx, notify.Event{
		Type:          notify.EventIntentConfirmed,
		BillID:        intent.BillID,
		IntentID:      intent.ID,
		ParticipantID: intent.ParticipantID,
		At:            transfer.Timestamp,
	})
	r.closeBillIfSettled(ctx, intent.BillID)
	return true, nil
}

// findMatch queries the indexer and picks the transfer that settles the
// intent: newest first, memo carrying the bill token, destination equal
// to the receiving address. Indexer failures are contained here.
func (r *Reconciler) findMatch(ctx context.Context, intent *models.PaymentIntent, address string) (ton.Transfer, bool) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	transfers, err := r.indexer.ListRecentTransfers(qctx, address, recentTransferLimit)
	if err != nil {
		// Transient indexer trouble is not a failed payment; the next
		// cycle retries.
		metrics.IndexerErrors.Inc()
		slog.Warn("indexer query failed, retrying next cycle",
			"intent_id", intent.ID, "error", err)
		return ton.Transfer{}, false
	}

	token := ton.MemoToken(intent.BillID)
	var matches []ton.Transfer
	for _, t := range transfers {
		// The destination check drops outbound noise and transfers
		// where the bill id merely appears in an unrelated comment.
		if t.To == address && strings.Contains(t.Memo, token) {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return ton.Transfer{}, false
	}

	// Latest by chain timestamp; hash order breaks ties so repeated
	// runs pick the same transfer.
	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Timestamp != matches[b].Timestamp {
			return matches[a].Timestamp > matches[b].Timestamp
		}
		return matches[a].Hash > matches[b].Hash
	})
	return matches[0], true
}

// closeBillIfSettled closes the bill once every tracked share is paid.
func (r *Reconciler) closeBillIfSettled(ctx context.Context, billID string) {
	bill, err := r.store.GetBill(ctx, billID)
	if err != nil {
		slog.Warn("failed to re-load bill after confirmation", "bill_id", billID, "error", err)
		return
	}
	if bill.Status == models.BillClosed || !bill.Settled() {
		return
	}
	if err := r.store.UpdateBillStatus(ctx, billID, models.BillClosed); err != nil {
		slog.Warn("failed to close settled bill", "bill_id", billID, "error", err)
		return
	}
	slog.Info("bill fully settled", "bill_id", billID)
	r.notifier.Publish(ctx, notify.Event{
		Type:   notify.EventBillSettled,
		BillID: billID,
		At:     time.Now().Unix(),
	})
}

// ReconcileAllPending runs ReconcileOne over every open intent,
// sequentially with an inter-call delay to respect indexer rate limits.
// One intent's failure never aborts the rest of the batch.
func (r *Reconciler) ReconcileAllPending(ctx context.Context) {
	start := time.Now()
	intents, err := r.store.ListOpenIntents(ctx)
	if err != nil {
		slog.Error("failed to list open intents", "error", err)
		return
	}
	if len(intents) == 0 {
		return
	}
	slog.Debug("reconcile cycle started", "open_intents", len(intents))

	for n, intent := range intents {
		if n > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.interCallDelay):
			}
		}
		if _, err := r.ReconcileOne(ctx, intent.ID); err != nil {
			slog.Error("failed to reconcile intent", "intent_id", intent.ID, "error", err)
		}
	}

	metrics.ReconcileCycles.Inc()
	metrics.ReconcileCycleDuration.Observe(time.Since(start).Seconds())
}

// ConfirmExternal is the push-based confirmation path: a provider webhook
// reporting a terminal status for the intent identified by its
// correlation token. It converges on the same state machine as polling
// and is idempotent against replays; a replay for an already-resolved
// intent is a no-op returning the current state.
func (r *Reconciler) ConfirmExternal(ctx context.Context, externalID, status string) (*models.PaymentIntent, error) {
	intent, err := r.store.GetIntentByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("load intent: %w", err)
	}
	if intent.Status.Terminal() {
		return intent, nil
	}

	switch strings.ToUpper(status) {
	case "CONFIRMED", "PAID", "SUCCEEDED":
		now := time.Now().Unix()
		confirmed, err := r.store.ConfirmIntent(ctx, intent.ID, now)
		if err != nil {
			return nil, fmt.Errorf("confirm intent: %w", err)
		}
		if confirmed {
			metrics.IntentsConfirmed.WithLabelValues(string(intent.Provider)).Inc()
			r.notifier.Publish(ctx, notify.Event{
				Type:          notify.EventIntentConfirmed,
				BillID:        intent.BillID,
				IntentID:      intent.ID,
				ParticipantID: intent.ParticipantID,
				At:            now,
			})
			r.closeBillIfSettled(ctx, intent.BillID)
		}
	case "FAILED", "EXPIRED":
		failed, err := r.store.FailIntent(ctx, intent.ID)
		if err != nil {
			return nil, fmt.Errorf("fail intent: %w", err)
		}
		if failed {
			r.notifier.Publish(ctx, notify.Event{
				Type:          notify.EventIntentFailed,
				BillID:        intent.BillID,
				IntentID:      intent.ID,
				ParticipantID: intent.ParticipantID,
				At:            time.Now().Unix(),
			})
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	return r.store.GetIntent(ctx, intent.ID)
}
