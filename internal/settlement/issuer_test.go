package settlement

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mkotov/splitton/internal/models"
)

func TestCreateIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("issues intent with share snapshot and deep link", func(t *testing.T) {
		f := seedBill(t, newTestStore(t), "100")
		issuer := NewIssuer(f.store)

		intent, err := issuer.CreateIntent(ctx, f.bill.ID, f.payer.ID)
		if err != nil {
			t.Fatalf("CreateIntent failed: %v", err)
		}

		if !intent.Amount.Equal(dec("50")) {
			t.Errorf("amount = %s, want 50", intent.Amount)
		}
		if intent.Status != models.IntentCreated {
			t.Errorf("status = %s, want CREATED", intent.Status)
		}
		if intent.Provider != models.CurrencyTON {
			t.Errorf("provider = %s, want TON", intent.Provider)
		}
		if intent.ExternalID == "" {
			t.Error("expected non-empty external ID")
		}
		wantLink := "ton://transfer/" + testWallet + "?amount=50000000000&text=Split%20Bill%20Payment%20-%20bill_" + f.bill.ID
		if intent.Deeplink != wantLink {
			t.Errorf("deeplink =\n  %s\nwant\n  %s", intent.Deeplink, wantLink)
		}

		// The participant now points at the open intent.
		p := f.payerParticipant(t)
		if p.PaymentID != intent.ID {
			t.Errorf("participant payment_id = %q, want %q", p.PaymentID, intent.ID)
		}
		if p.PaymentStatus != models.PaymentPending {
			t.Errorf("participant status = %s, want PENDING", p.PaymentStatus)
		}
	})

	t.Run("second request conflicts while intent is open", func(t *testing.T) {
		f := seedBill(t, newTestStore(t), "100")
		issuer := NewIssuer(f.store)

		if _, err := issuer.CreateIntent(ctx, f.bill.ID, f.payer.ID); err != nil {
			t.Fatalf("first CreateIntent failed: %v", err)
		}
		if _, err := issuer.CreateIntent(ctx, f.bill.ID, f.payer.ID); !errors.Is(err, ErrPaymentInProgress) {
			t.Errorf("expected ErrPaymentInProgress, got %v", err)
		}
	})

	t.Run("unknown bill", func(t *testing.T) {
		f := seedBill(t, newTestStore(t), "100")
		issuer := NewIssuer(f.store)

		if _, err := issuer.CreateIntent(ctx, "no-such-bill", f.payer.ID); !errors.Is(err, ErrBillNotFound) {
			t.Errorf("expected ErrBillNotFound, got %v", err)
		}
	})

	t.Run("caller is not a participant", func(t *testing.T) {
		f := seedBill(t, newTestStore(t), "100")
		issuer := NewIssuer(f.store)

		// The creator made the bill but holds no share in it.
		if _, err := issuer.CreateIntent(ctx, f.bill.ID, f.creator.ID); !errors.Is(err, ErrParticipantNotFound) {
			t.Errorf("expected ErrParticipantNotFound, got %v", err)
		}
	})

	t.Run("share already paid", func(t *testing.T) {
		f := seedBill(t, newTestStore(t), "100")
		issuer := NewIssuer(f.store)

		p := f.payerParticipant(t)
		if err := f.store.SetParticipantPayment(ctx, p.ID, models.PaymentPaid, ""); err != nil {
			t.Fatalf("SetParticipantPayment failed: %v", err)
		}
		if _, err := issuer.CreateIntent(ctx, f.bill.ID, f.payer.ID); !errors.Is(err, ErrAlreadyPaid) {
			t.Errorf("expected ErrAlreadyPaid, got %v", err)
		}
	})

	t.Run("creator wallet not configured", func(t *testing.T) {
		store := newTestStore(t)
		f := seedBill(t, store, "100")
		if err := store.SetWalletAddress(ctx, f.creator.ID, ""); err != nil {
			t.Fatalf("SetWalletAddress failed: %v", err)
		}
		issuer := NewIssuer(store)

		if _, err := issuer.CreateIntent(ctx, f.bill.ID, f.payer.ID); !errors.Is(err, ErrWalletNotConfigured) {
			t.Errorf("expected ErrWalletNotConfigured, got %v", err)
		}
	})

	t.Run("usdt bill renders currency-qualified memo", func(t *testing.T) {
		store := newTestStore(t)
		f := seedBill(t, store, "100")

		usdtBill := &models.Bill{
			Title:       "Groceries",
			CreatorID:   f.creator.ID,
			TotalAmount: dec("30"),
			Currency:    models.CurrencyUSDT,
			SplitMode:   models.SplitEqual,
			Participants: []models.Participant{
				{UserID: f.payer.ID, ShareAmount: dec("30")},
			},
		}
		if err := store.CreateBill(ctx, usdtBill); err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}

		intent, err := NewIssuer(store).CreateIntent(ctx, usdtBill.ID, f.payer.ID)
		if err != nil {
			t.Fatalf("CreateIntent failed: %v", err)
		}
		if intent.Provider != models.CurrencyUSDT {
			t.Errorf("provider = %s, want USDT", intent.Provider)
		}
		if !strings.Contains(intent.Deeplink, "USDT") {
			t.Errorf("deeplink lacks currency qualifier: %s", intent.Deeplink)
		}
	})
}
