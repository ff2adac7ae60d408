package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/notify"
	"github.com/mkotov/splitton/internal/ton"
)

// transferFor builds an inbound transfer settling the given intent.
func transferFor(intent *models.PaymentIntent, hash string, valueNano, ts int64) ton.Transfer {
	return ton.Transfer{
		Hash:           hash,
		From:           "UQBpayerwalletxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
		To:             testWallet,
		ValueBaseUnits: valueNano,
		Memo:           "Split Bill Payment - bill_" + intent.BillID,
		Timestamp:      ts,
	}
}

func TestReconcileOne(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, total string) (*fixture, *models.PaymentIntent, *fakeIndexer, *recordingNotifier, *Reconciler) {
		f := seedBill(t, newTestStore(t), total)
		intent, err := NewIssuer(f.store).CreateIntent(ctx, f.bill.ID, f.payer.ID)
		if err != nil {
			t.Fatalf("CreateIntent failed: %v", err)
		}
		indexer := &fakeIndexer{}
		notifier := &recordingNotifier{}
		return f, intent, indexer, notifier, NewReconciler(f.store, indexer, notifier)
	}

	t.Run("confirms matching transfer", func(t *testing.T) {
		f, intent, indexer, notifier, rec := setup(t, "100")
		indexer.transfers = []ton.Transfer{transferFor(intent, "aa11", 50_000_000_000, 1700000100)}

		confirmed, err := rec.ReconcileOne(ctx, intent.ID)
		if err != nil {
			t.Fatalf("ReconcileOne failed: %v", err)
		}
		if !confirmed {
			t.Fatal("expected intent to confirm")
		}

		got, err := f.store.GetIntent(ctx, intent.ID)
		if err != nil {
			t.Fatalf("GetIntent failed: %v", err)
		}
		if got.Status != models.IntentConfirmed {
			t.Errorf("status = %s, want CONFIRMED", got.Status)
		}
		if got.CompletedAt != 1700000100 {
			t.Errorf("completed_at = %d, want chain timestamp 1700000100", got.CompletedAt)
		}

		if p := f.payerParticipant(t); p.PaymentStatus != models.PaymentPaid {
			t.Errorf("participant status = %s, want PAID", p.PaymentStatus)
		}
		if n := len(notifier.byType(notify.EventIntentConfirmed)); n != 1 {
			t.Errorf("confirmed notifications = %d, want exactly 1", n)
		}
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		f, intent, indexer, notifier, rec := setup(t, "100")
		indexer.transfers = []ton.Transfer{transferFor(intent, "aa11", 50_000_000_000, 1700000100)}

		if confirmed, _ := rec.ReconcileOne(ctx, intent.ID); !confirmed {
			t.Fatal("first call should confirm")
		}
		before, _ := f.store.GetIntent(ctx, intent.ID)

		confirmed, err := rec.ReconcileOne(ctx, intent.ID)
		if err != nil {
			t.Fatalf("second ReconcileOne failed: %v", err)
		}
		if confirmed {
			t.Error("second call must return false for a confirmed intent")
		}

		after, _ := f.store.GetIntent(ctx, intent.ID)
		if after.CompletedAt != before.CompletedAt {
			t.Errorf("completed_at changed on replay: %d -> %d", before.CompletedAt, after.CompletedAt)
		}
		if n := len(notifier.byType(notify.EventIntentConfirmed)); n != 1 {
			t.Errorf("confirmed notifications = %d, want exactly 1 after replay", n)
		}
	})

	t.Run("amount tolerance", func(t *testing.T) {
		tests := []struct {
			name      string
			valueNano int64
			want      bool
		}{
			{"exact", 12_500_000_000, true},
			{"within tolerance", 12_499_000_000, true},
			{"outside tolerance", 12_490_000_000, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := seedBill(t, newTestStore(t), "25")
				intent, err := NewIssuer(f.store).CreateIntent(ctx, f.bill.ID, f.payer.ID)
				if err != nil {
					t.Fatalf("CreateIntent failed: %v", err)
				}
				indexer := &fakeIndexer{transfers: []ton.Transfer{
					transferFor(intent, "bb22", tt.valueNano, 1700000200),
				}}
				rec := NewReconciler(f.store, indexer, &recordingNotifier{})

				confirmed, err := rec.ReconcileOne(ctx, intent.ID)
				if err != nil {
					t.Fatalf("ReconcileOne failed: %v", err)
				}
				if confirmed != tt.want {
					t.Errorf("confirmed = %v, want %v (value %d nano vs share 12.5)", confirmed, tt.want, tt.valueNano)
				}
			})
		}
	})

	t.Run("ignores transfers without the bill memo token", func(t *testing.T) {
		_, intent, indexer, _, rec := setup(t, "100")
		tr := transferFor(intent, "cc33", 50_000_000_000, 1700000300)
		tr.Memo = "thanks for dinner"
		indexer.transfers = []ton.Transfer{tr}

		if confirmed, _ := rec.ReconcileOne(ctx, intent.ID); confirmed {
			t.Error("transfer without memo token must not confirm")
		}
	})

	t.Run("ignores transfers to other destinations", func(t *testing.T) {
		_, intent, indexer, _, rec := setup(t, "100")
		tr := transferFor(intent, "dd44", 50_000_000_000, 1700000300)
		tr.To = "UQBsomeoneelsexxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"
		indexer.transfers = []ton.Transfer{tr}

		if confirmed, _ := rec.ReconcileOne(ctx, intent.ID); confirmed {
			t.Error("transfer to another address must not confirm")
		}
	})

	t.Run("takes latest matching transfer deterministically", func(t *testing.T) {
		f, intent, indexer, _, rec := setup(t, "100")
		// Older transfer has the right amount, newest does not: the
		// reconciler must pick the newest and reject it.
		indexer.transfers = []ton.Transfer{
			transferFor(intent, "ee55", 50_000_000_000, 1700000100),
			transferFor(intent, "ff66", 10_000_000_000, 1700000500),
		}

		if confirmed, _ := rec.ReconcileOne(ctx, intent.ID); confirmed {
			t.Error("newest matching transfer has wrong amount, must not confirm")
		}
		got, _ := f.store.GetIntent(ctx, intent.ID)
		if got.Status.Terminal() {
			t.Errorf("intent must stay open, got %s", got.Status)
		}
	})

	t.Run("indexer failure is contained", func(t *testing.T) {
		f, intent, indexer, _, rec := setup(t, "100")
		indexer.err = errors.New("upstream 429")

		confirmed, err := rec.ReconcileOne(ctx, intent.ID)
		if err != nil {
			t.Fatalf("indexer failure must not propagate, got %v", err)
		}
		if confirmed {
			t.Error("confirmed must be false on indexer failure")
		}
		got, _ := f.store.GetIntent(ctx, intent.ID)
		if got.Status.Terminal() {
			t.Errorf("transient failure must not resolve the intent, got %s", got.Status)
		}
	})

	t.Run("unknown intent", func(t *testing.T) {
		_, _, _, _, rec := setup(t, "100")
		if _, err := rec.ReconcileOne(ctx, "no-such-intent"); !errors.Is(err, ErrPaymentNotFound) {
			t.Errorf("expected ErrPaymentNotFound, got %v", err)
		}
	})
}

func TestReconcileAllPending(t *testing.T) {
	ctx := context.Background()
	f := seedBill(t, newTestStore(t), "100")
	intent, err := NewIssuer(f.store).CreateIntent(ctx, f.bill.ID, f.payer.ID)
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}

	indexer := &fakeIndexer{transfers: []ton.Transfer{
		transferFor(intent, "aa11", 50_000_000_000, 1700000100),
	}}
	notifier := &recordingNotifier{}
	rec := NewReconciler(f.store, indexer, notifier)
	rec.interCallDelay = time.Millisecond

	rec.ReconcileAllPending(ctx)

	got, err := f.store.GetIntent(ctx, intent.ID)
	if err != nil {
		t.Fatalf("GetIntent failed: %v", err)
	}
	if got.Status != models.IntentConfirmed {
		t.Errorf("status = %s, want CONFIRMED", got.Status)
	}

	// Running the whole batch again must not re-query for the resolved
	// intent or re-notify.
	callsAfterFirst := indexer.calls
	rec.ReconcileAllPending(ctx)
	if indexer.calls != callsAfterFirst {
		t.Errorf("resolved intent triggered %d extra indexer calls", indexer.calls-callsAfterFirst)
	}
	if n := len(notifier.byType(notify.EventIntentConfirmed)); n != 1 {
		t.Errorf("confirmed notifications = %d, want exactly 1", n)
	}
}

func TestConfirmExternal(t *testing.T) {
	ctx := context.Background()

	t.Run("webhook confirms open intent once", func(t *testing.T) {
		f := seedBill(t, newTestStore(t), "100")
		intent, err := NewIssuer(f.store).CreateIntent(ctx, f.bill.ID, f.payer.ID)
		if err != nil {
			t.Fatalf("CreateIntent failed: %v", err)
		}
		notifier := &recordingNotifier{}
		rec := NewReconciler(f.store, &fakeIndexer{}, notifier)

		got, err := rec.ConfirmExternal(ctx, intent.ExternalID, "CONFIRMED")
		if err != nil {
			t.Fatalf("ConfirmExternal failed: %v", err)
		}
		if got.Status != models.IntentConfirmed {
			t.Errorf("status = %s, want CONFIRMED", got.Status)
		}
		if p := f.payerParticipant(t); p.PaymentStatus != models.PaymentPaid {
			t.Errorf("participant status = %s, want PAID", p.PaymentStatus)
		}

		// Replays converge on the already-terminal state without a
		// second notification.
		replay, err := rec.ConfirmExternal(ctx, intent.ExternalID, "CONFIRMED")
		if err != nil {
			t.Fatalf("replay failed: %v", err)
		}
		if replay.Status != models.IntentConfirmed {
			t.Errorf("replay status = %s, want CONFIRMED", replay.Status)
		}
		if n := len(notifier.byType(notify.EventIntentConfirmed)); n != 1 {
			t.Errorf("confirmed notifications = %d, want exactly 1", n)
		}
	})

	t.Run("webhook failure marks intent failed", func(t *testing.T) {
		f := seedBill(t, newTestStore(t), "100")
		intent, err := NewIssuer(f.store).CreateIntent(ctx, f.bill.ID, f.payer.ID)
		if err != nil {
			t.Fatalf("CreateIntent failed: %v", err)
		}
		notifier := &recordingNotifier{}
		rec := NewReconciler(f.store, &fakeIndexer{}, notifier)

		got, err := rec.ConfirmExternal(ctx, intent.ExternalID, "FAILED")
		if err != nil {
			t.Fatalf("ConfirmExternal failed: %v", err)
		}
		if got.Status != models.IntentFailed {
			t.Errorf("status = %s, want FAILED", got.Status)
		}
		if n := len(notifier.byType(notify.EventIntentFailed)); n != 1 {
			t.Errorf("failed notifications = %d, want 1", n)
		}
	})

	t.Run("unknown token and status", func(t *testing.T) {
		f := seedBill(t, newTestStore(t), "100")
		intent, err := NewIssuer(f.store).CreateIntent(ctx, f.bill.ID, f.payer.ID)
		if err != nil {
			t.Fatalf("CreateIntent failed: %v", err)
		}
		rec := NewReconciler(f.store, &fakeIndexer{}, notify.Discard{})

		if _, err := rec.ConfirmExternal(ctx, "bogus-token", "CONFIRMED"); !errors.Is(err, ErrPaymentNotFound) {
			t.Errorf("expected ErrPaymentNotFound, got %v", err)
		}
		if _, err := rec.ConfirmExternal(ctx, intent.ExternalID, "HOVERBOARD"); !errors.Is(err, ErrUnknownStatus) {
			t.Errorf("expected ErrUnknownStatus, got %v", err)
		}
	})
}

func TestBillClosesWhenFullySettled(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	f := seedBill(t, store, "100")

	bill, err := store.GetBill(ctx, f.bill.ID)
	if err != nil {
		t.Fatalf("GetBill failed: %v", err)
	}
	var adhocID string
	for _, p := range bill.Participants {
		if p.UserID == "" {
			adhocID = p.ID
		}
	}
	if adhocID == "" {
		t.Fatal("expected one unresolved participant")
	}

	notifier := &recordingNotifier{}
	indexer := &fakeIndexer{}
	rec := NewReconciler(store, indexer, notifier)
	issuer := NewIssuer(store)

	// First share settles; bill stays open.
	intent1, err := issuer.CreateIntent(ctx, f.bill.ID, f.payer.ID)
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}
	indexer.transfers = []ton.Transfer{transferFor(intent1, "aa11", 50_000_000_000, 1700000100)}
	if confirmed, _ := rec.ReconcileOne(ctx, intent1.ID); !confirmed {
		t.Fatal("first intent should confirm")
	}
	if b, _ := store.GetBill(ctx, f.bill.ID); b.Status != models.BillOpen {
		t.Fatalf("bill closed with one share still unpaid, status %s", b.Status)
	}

	// Settle the second share via the webhook path.
	intent2 := &models.PaymentIntent{
		BillID:        f.bill.ID,
		ParticipantID: adhocID,
		Provider:      models.CurrencyTON,
		Amount:        dec("50"),
		Deeplink:      "ton://transfer/unused",
	}
	if err := store.CreateIntent(ctx, intent2); err != nil {
		t.Fatalf("CreateIntent (store) failed: %v", err)
	}
	if _, err := rec.ConfirmExternal(ctx, intent2.ExternalID, "CONFIRMED"); err != nil {
		t.Fatalf("ConfirmExternal failed: %v", err)
	}

	if b, _ := store.GetBill(ctx, f.bill.ID); b.Status != models.BillClosed {
		t.Errorf("bill status = %s, want CLOSED once all shares are paid", b.Status)
	}
	if n := len(notifier.byType(notify.EventBillSettled)); n != 1 {
		t.Errorf("settled notifications = %d, want 1", n)
	}
}

func TestStaleSweep(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	f := seedBill(t, store, "100")
	issuer := NewIssuer(store)
	rec := NewReconciler(store, &fakeIndexer{}, notify.Discard{})

	fresh, err := issuer.CreateIntent(ctx, f.bill.ID, f.payer.ID)
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}

	// An aged open intent for the second participant, and an aged
	// confirmed one to prove terminal intents are never swept.
	bill, _ := store.GetBill(ctx, f.bill.ID)
	var adhocID string
	for _, p := range bill.Participants {
		if p.UserID == "" {
			adhocID = p.ID
		}
	}
	old := time.Now().Add(-48 * time.Hour).Unix()
	stale := &models.PaymentIntent{
		BillID:        f.bill.ID,
		ParticipantID: adhocID,
		Provider:      models.CurrencyTON,
		Amount:        dec("50"),
		Deeplink:      "ton://transfer/unused",
		Status:        models.IntentPending,
		CreatedAt:     old,
	}
	if err := store.CreateIntent(ctx, stale); err != nil {
		t.Fatalf("CreateIntent (stale) failed: %v", err)
	}
	if err := store.SetParticipantPayment(ctx, adhocID, models.PaymentPending, stale.ID); err != nil {
		t.Fatalf("SetParticipantPayment failed: %v", err)
	}
	settled := &models.PaymentIntent{
		BillID:        f.bill.ID,
		ParticipantID: f.payerParticipant(t).ID,
		Provider:      models.CurrencyTON,
		Amount:        dec("50"),
		Deeplink:      "ton://transfer/unused",
		Status:        models.IntentConfirmed,
		CreatedAt:     old,
	}
	if err := store.CreateIntent(ctx, settled); err != nil {
		t.Fatalf("CreateIntent (settled) failed: %v", err)
	}

	listed, err := rec.StaleIntents(ctx, DefaultStaleAge)
	if err != nil {
		t.Fatalf("StaleIntents failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != stale.ID {
		t.Fatalf("stale listing = %v, want exactly the aged open intent", listed)
	}

	removed, err := rec.SweepStale(ctx, DefaultStaleAge)
	if err != nil {
		t.Fatalf("SweepStale failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	// The swept participant is reset so payment can be retried.
	p, err := store.GetParticipant(ctx, adhocID)
	if err != nil {
		t.Fatalf("GetParticipant failed: %v", err)
	}
	if p.PaymentStatus != models.PaymentPending || p.PaymentID != "" {
		t.Errorf("participant after sweep = %s/%q, want PENDING with no intent", p.PaymentStatus, p.PaymentID)
	}

	// The fresh and confirmed intents survive.
	if _, err := store.GetIntent(ctx, fresh.ID); err != nil {
		t.Errorf("fresh intent should survive the sweep: %v", err)
	}
	if _, err := store.GetIntent(ctx, settled.ID); err != nil {
		t.Errorf("confirmed intent should never be swept: %v", err)
	}
}
