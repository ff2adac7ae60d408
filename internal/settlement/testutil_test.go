package settlement

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/notify"
	"github.com/mkotov/splitton/internal/storage/sqlite"
	"github.com/mkotov/splitton/internal/ton"
)

const testWallet = "UQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAH"

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "splitton-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// fixture is a seeded creator+payer pair with an open two-person bill.
type fixture struct {
	store   *sqlite.SQLiteStore
	creator *models.User
	payer   *models.User
	bill    *models.Bill
}

// payerParticipant returns the participant resolved to the payer user.
func (f *fixture) payerParticipant(t *testing.T) *models.Participant {
	t.Helper()
	p, err := f.store.FindParticipantByUser(context.Background(), f.bill.ID, f.payer.ID)
	if err != nil {
		t.Fatalf("FindParticipantByUser failed: %v", err)
	}
	return p
}

// seedBill creates a creator (with wallet), a payer user, and an OPEN
// TON bill of the given total split equally between the payer and one
// unresolved participant.
func seedBill(t *testing.T, store *sqlite.SQLiteStore, total string) *fixture {
	t.Helper()
	ctx := context.Background()

	creator := &models.User{TelegramID: 1001, Username: "creator", FirstName: "Olya"}
	if err := store.UpsertUser(ctx, creator); err != nil {
		t.Fatalf("UpsertUser(creator) failed: %v", err)
	}
	if err := store.SetWalletAddress(ctx, creator.ID, testWallet); err != nil {
		t.Fatalf("SetWalletAddress failed: %v", err)
	}

	payer := &models.User{TelegramID: 1002, Username: "payer", FirstName: "Dima"}
	if err := store.UpsertUser(ctx, payer); err != nil {
		t.Fatalf("UpsertUser(payer) failed: %v", err)
	}

	share := dec(total).Div(dec("2")).RoundUp(2)
	bill := &models.Bill{
		Title:       "Dinner",
		CreatorID:   creator.ID,
		TotalAmount: dec(total),
		Currency:    models.CurrencyTON,
		SplitMode:   models.SplitEqual,
		Participants: []models.Participant{
			{UserID: payer.ID, TelegramUserID: payer.TelegramID, ShareAmount: share},
			{Name: "Ad-hoc Guest", ShareAmount: share},
		},
	}
	if err := store.CreateBill(ctx, bill); err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	return &fixture{store: store, creator: creator, payer: payer, bill: bill}
}

// fakeIndexer serves canned transfers and records call counts.
type fakeIndexer struct {
	mu        sync.Mutex
	transfers []ton.Transfer
	err       error
	calls     int
}

func (f *fakeIndexer) ListRecentTransfers(_ context.Context, _ string, _ int) ([]ton.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.transfers, nil
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) byType(typ notify.EventType) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
