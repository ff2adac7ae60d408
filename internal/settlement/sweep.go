package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkotov/splitton/internal/models"
)

// DefaultStaleAge is how old an unresolved intent must be before the
// administrative sweep removes it.
const DefaultStaleAge = 24 * time.Hour

// StaleIntents lists open intents older than age, oldest first. Terminal
// intents are never included regardless of age.
func (r *Reconciler) StaleIntents(ctx context.Context, age time.Duration) ([]models.PaymentIntent, error) {
	cutoff := time.Now().Add(-age).Unix()
	return r.store.ListStaleIntents(ctx, cutoff)
}

// SweepStale deletes open intents older than age and resets each owning
// participant back to PENDING with no current intent, so the person can
// request a fresh payment. Returns how many intents were removed.
func (r *Reconciler) SweepStale(ctx context.Context, age time.Duration) (int, error) {
	stale, err := r.StaleIntents(ctx, age)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, intent := range stale {
		ok, err := r.store.DeleteStaleIntent(ctx, intent.ID)
		if err != nil {
			slog.Error("failed to delete stale intent", "intent_id", intent.ID, "error", err)
			continue
		}
		if ok {
			removed++
			slog.Info("stale intent removed",
				"intent_id", intent.ID,
				"bill_id", intent.BillID,
				"age_hours", (time.Now().Unix()-intent.CreatedAt)/3600,
			)
		}
	}
	return removed, nil
}
