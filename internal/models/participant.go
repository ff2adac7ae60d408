package models

import "github.com/shopspring/decimal"

// PaymentStatus is the settlement state of one participant's share.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Participant is one person's share of a bill.
//
// A participant's identity is either resolved (UserID set) or unresolved:
// a Telegram user ID, a Telegram username, or a freeform name captured at
// bill creation. Resolution happens when that person authenticates.
type Participant struct {
	// ID is the unique identifier for the participant (UUID format).
	ID string `json:"id"`

	// BillID is the owning bill. Back-reference only.
	BillID string `json:"bill_id"`

	// UserID references the resolved User, empty while unresolved.
	UserID string `json:"user_id,omitempty"`

	// TelegramUserID is the participant's Telegram ID when known at
	// creation time (0 when unknown).
	TelegramUserID int64 `json:"telegram_user_id,omitempty"`

	// TelegramUsername is the participant's @username when known.
	TelegramUsername string `json:"telegram_username,omitempty"`

	// Name is a freeform display name for ad-hoc participants.
	Name string `json:"name,omitempty"`

	// ShareAmount is this participant's share of the bill total, >= 0.
	ShareAmount decimal.Decimal `json:"share_amount"`

	// PaymentStatus transitions PENDING -> PAID only via chain
	// confirmation or administrative override.
	PaymentStatus PaymentStatus `json:"payment_status"`

	// IsPayer marks the participant who covered the bill up front. At
	// most one participant per bill may be the payer; a payer's share is
	// excluded from unpaid checks.
	IsPayer bool `json:"is_payer"`

	// PaymentID references the currently open PaymentIntent, empty when
	// none. At most one non-terminal intent exists per participant.
	PaymentID string `json:"payment_id,omitempty"`
}

// DisplayName returns the best available human-readable name.
func (p *Participant) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.TelegramUsername != "":
		return "@" + p.TelegramUsername
	default:
		return p.ID
	}
}

// Unpaid reports whether the participant's share still needs settling.
// The payer is never considered unpaid.
func (p *Participant) Unpaid() bool {
	return !p.IsPayer && p.PaymentStatus != PaymentPaid
}
