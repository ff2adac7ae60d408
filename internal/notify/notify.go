// Package notify dispatches settlement state-change events.
//
// Delivery is strictly best-effort and fire-and-forget: a notification is
// emitted only after the state transition is durably persisted, and a
// failure to reach any subscriber never aborts or rolls back the
// settlement work that triggered it.
package notify

import (
	"context"
	"log/slog"
)

// EventType identifies the kind of settlement event.
type EventType string

const (
	// EventIntentConfirmed fires when a payment intent reaches
	// CONFIRMED and its participant's share becomes PAID.
	EventIntentConfirmed EventType = "intent_confirmed"

	// EventIntentFailed fires when a payment intent reaches FAILED.
	EventIntentFailed EventType = "intent_failed"

	// EventBillSettled fires when the last tracked share of a bill is
	// paid and the bill closes.
	EventBillSettled EventType = "bill_settled"
)

// Event is a settlement state change keyed by bill.
type Event struct {
	Type          EventType `json:"type"`
	BillID        string    `json:"bill_id"`
	IntentID      string    `json:"intent_id,omitempty"`
	ParticipantID string    `json:"participant_id,omitempty"`
	At            int64     `json:"at"`
}

// Notifier delivers settlement events. Implementations must not block on
// slow consumers and must swallow their own delivery errors.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// Multi fans one event out to several notifiers.
type Multi []Notifier

// Publish delivers the event to every notifier in order.
func (m Multi) Publish(ctx context.Context, event Event) {
	for _, n := range m {
		n.Publish(ctx, event)
	}
}

// Discard is a Notifier that drops everything. Useful in tests and when
// no real-time channel is configured.
type Discard struct{}

func (Discard) Publish(_ context.Context, event Event) {
	slog.Debug("settlement event discarded", "type", event.Type, "bill_id", event.BillID)
}
