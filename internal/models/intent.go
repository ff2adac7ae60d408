package models

import "github.com/shopspring/decimal"

// IntentStatus is the lifecycle state of a payment intent.
//
// CREATED -> PENDING -> CONFIRMED | FAILED. CONFIRMED and FAILED are
// terminal: once reached, no further transition is permitted.
type IntentStatus string

const (
	IntentCreated   IntentStatus = "CREATED"
	IntentPending   IntentStatus = "PENDING"
	IntentConfirmed IntentStatus = "CONFIRMED"
	IntentFailed    IntentStatus = "FAILED"
)

// Terminal reports whether the status permits no further transitions.
func (s IntentStatus) Terminal() bool {
	return s == IntentConfirmed || s == IntentFailed
}

// Open reports whether the intent still awaits resolution.
func (s IntentStatus) Open() bool {
	return s == IntentCreated || s == IntentPending
}

// PaymentIntent records a request to pay one participant's share.
//
// The intent snapshots the share amount at creation; editing the share
// afterwards does not change an issued intent. Historical intents may
// outlive the participant's current PaymentID pointer.
type PaymentIntent struct {
	// ID is the unique identifier for the intent (UUID format).
	ID string `json:"id"`

	// BillID and ParticipantID locate the share being paid.
	BillID        string `json:"bill_id"`
	ParticipantID string `json:"participant_id"`

	// Provider is the chain/currency the intent settles in. It matches
	// the bill's currency at creation time.
	Provider Currency `json:"provider"`

	// Amount is the share amount snapshot taken at creation.
	Amount decimal.Decimal `json:"amount"`

	// Deeplink is the wallet transfer link rendered once at creation.
	Deeplink string `json:"deeplink"`

	// ExternalID is a client-correlation token, also used by the webhook
	// confirmation path.
	ExternalID string `json:"external_id"`

	// Status advances only via the reconciler (or the webhook path,
	// which converges on the same state machine).
	Status IntentStatus `json:"status"`

	// CreatedAt is the Unix timestamp when the intent was issued.
	CreatedAt int64 `json:"created_at"`

	// CompletedAt is the chain timestamp of the confirming transfer.
	// Zero until the intent is CONFIRMED.
	CompletedAt int64 `json:"completed_at,omitempty"`
}
