// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mkotov/splitton/internal/models"
)

// Sentinel errors returned by Store implementations. Callers match with
// errors.Is and translate to their own taxonomy.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOpenIntentExists is returned by CreateIntent when the
	// participant already has an intent in a non-terminal state. This is
	// the storage-level backstop for the check-then-create race: the
	// loser of a duplicate-create race gets this instead of corrupting
	// state.
	ErrOpenIntentExists = errors.New("open payment intent already exists")
)

// Store defines the interface for Splitton's persistence operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the settlement or handler layers, and lets tests
// run against a throwaway database.
type Store interface {
	// UpsertUser creates a user keyed by Telegram ID, or refreshes the
	// profile fields of an existing one. The user's ID is populated.
	// Any unresolved participants matching the Telegram identity are
	// linked to the user.
	UpsertUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by internal ID.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// GetUserByTelegramID retrieves a user by Telegram account ID.
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	// SetWalletAddress records a user's receiving wallet address.
	// The address must already be validated by the caller.
	SetWalletAddress(ctx context.Context, userID, address string) error

	// CreateBill persists a bill together with its full participant set
	// in one transaction. IDs and CreatedAt are populated. A bill is
	// never observed with zero participants once creation succeeds.
	CreateBill(ctx context.Context, bill *models.Bill) error

	// GetBill retrieves a bill with its participants.
	GetBill(ctx context.Context, billID string) (*models.Bill, error)

	// UpdateBillStatus sets a bill's lifecycle status.
	UpdateBillStatus(ctx context.Context, billID string, status models.BillStatus) error

	// DeleteBill removes a bill with its participants and intents.
	// Callers enforce the pre-payment-only rule before invoking this.
	DeleteBill(ctx context.Context, billID string) error

	// GetParticipant retrieves a participant by ID.
	GetParticipant(ctx context.Context, participantID string) (*models.Participant, error)

	// FindParticipantByUser locates the participant of a bill resolved
	// to the given user.
	FindParticipantByUser(ctx context.Context, billID, userID string) (*models.Participant, error)

	// SetParticipantPayment updates a participant's payment status and
	// current intent pointer (empty paymentID clears the pointer).
	SetParticipantPayment(ctx context.Context, participantID string, status models.PaymentStatus, paymentID string) error

	// CreateIntent persists a new payment intent. Returns
	// ErrOpenIntentExists if the participant already has a non-terminal
	// intent; the uniqueness is enforced by the database, not by a
	// read-then-write.
	CreateIntent(ctx context.Context, intent *models.PaymentIntent) error

	// GetIntent retrieves an intent by ID.
	GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)

	// GetIntentByExternalID retrieves an intent by its client
	// correlation token (webhook confirmation path).
	GetIntentByExternalID(ctx context.Context, externalID string) (*models.PaymentIntent, error)

	// ListOpenIntents returns every intent in a non-terminal state,
	// oldest first.
	ListOpenIntents(ctx context.Context) ([]models.PaymentIntent, error)

	// ConfirmIntent atomically marks an open intent CONFIRMED with the
	// given completion timestamp and its participant PAID. Returns false
	// without error when the intent was not open (already resolved by a
	// concurrent path), so callers can skip duplicate notifications.
	ConfirmIntent(ctx context.Context, intentID string, completedAt int64) (bool, error)

	// FailIntent atomically marks an open intent FAILED and its
	// participant FAILED. Returns false when the intent was not open.
	FailIntent(ctx context.Context, intentID string) (bool, error)

	// ListStaleIntents returns open intents created at or before cutoff
	// (Unix seconds), oldest first.
	ListStaleIntents(ctx context.Context, cutoff int64) ([]models.PaymentIntent, error)

	// DeleteStaleIntent removes a still-open intent and resets its
	// participant to PENDING with no current intent. Terminal intents
	// are left untouched (returns false).
	DeleteStaleIntent(ctx context.Context, intentID string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
