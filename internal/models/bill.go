package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is the settlement currency of a bill.
type Currency string

const (
	CurrencyTON  Currency = "TON"
	CurrencyUSDT Currency = "USDT"
)

// Valid reports whether c is a known currency.
func (c Currency) Valid() bool {
	return c == CurrencyTON || c == CurrencyUSDT
}

// SplitMode determines how a bill's total is divided among participants.
type SplitMode string

const (
	// SplitEqual divides the total evenly, each share rounded up to the
	// next minor unit. The sum of shares may slightly exceed the total.
	SplitEqual SplitMode = "EQUAL"
	// SplitCustom uses caller-provided share amounts, validated to cover
	// the total (surplus allowed, deficit rejected).
	SplitCustom SplitMode = "CUSTOM"
)

// BillStatus is the lifecycle state of a bill.
type BillStatus string

const (
	BillOpen   BillStatus = "OPEN"
	BillClosed BillStatus = "CLOSED"
)

// SumEpsilon is the tolerance used when comparing the sum of participant
// shares against a bill's total, expressed in the currency's minor unit.
var SumEpsilon = decimal.NewFromFloat(0.01)

// Bill represents a shared bill to be settled by its participants.
// Total and currency are immutable after creation; Status moves
// OPEN -> CLOSED only when every tracked share is paid.
type Bill struct {
	// ID is the unique identifier for the bill (UUID format).
	ID string `json:"id"`

	// Title is the human-readable name for the bill.
	Title string `json:"title"`

	// CreatorID references the User who created the bill. The creator's
	// registered wallet is the receiving address for all share payments.
	CreatorID string `json:"creator_id"`

	// TotalAmount is the full bill amount in Currency units.
	TotalAmount decimal.Decimal `json:"total_amount"`

	// Currency is the settlement currency (TON or USDT).
	Currency Currency `json:"currency"`

	// SplitMode records how shares were derived from the total.
	SplitMode SplitMode `json:"split_mode"`

	// Status is OPEN until all tracked shares are PAID.
	Status BillStatus `json:"status"`

	// Participants is the bill's full participant set. A bill is never
	// observed with zero participants once creation succeeds.
	Participants []Participant `json:"participants,omitempty"`

	// CreatedAt is the Unix timestamp when the bill was created.
	CreatedAt int64 `json:"created_at"`
}

// ValidateShares checks the bill's arithmetic invariant: the sum of
// participant shares must cover the total within SumEpsilon. A surplus is
// permitted (EQUAL mode rounds every share up), a deficit is not.
func (b *Bill) ValidateShares() error {
	sum := decimal.Zero
	for _, p := range b.Participants {
		if p.ShareAmount.IsNegative() {
			return fmt.Errorf("participant %q has negative share %s", p.DisplayName(), p.ShareAmount)
		}
		sum = sum.Add(p.ShareAmount)
	}
	if sum.Cmp(b.TotalAmount.Sub(SumEpsilon)) < 0 {
		return fmt.Errorf("shares sum %s does not cover total %s", sum, b.TotalAmount)
	}
	return nil
}

// Payer returns the participant marked as having paid on behalf of
// everyone, or nil if the bill has none.
func (b *Bill) Payer() *Participant {
	for i := range b.Participants {
		if b.Participants[i].IsPayer {
			return &b.Participants[i]
		}
	}
	return nil
}

// Settled reports whether every tracked (non-payer) share is PAID.
func (b *Bill) Settled() bool {
	for _, p := range b.Participants {
		if p.IsPayer {
			continue
		}
		if p.PaymentStatus != PaymentPaid {
			return false
		}
	}
	return true
}
