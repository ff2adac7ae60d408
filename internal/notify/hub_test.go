package notify

import (
	"context"
	"testing"
)

func TestHub(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers per bill", func(t *testing.T) {
		hub := NewHub()
		chA, cancelA := hub.Subscribe("bill-a")
		defer cancelA()
		chB, cancelB := hub.Subscribe("bill-b")
		defer cancelB()

		hub.Publish(ctx, Event{Type: EventIntentConfirmed, BillID: "bill-a", IntentID: "i1"})

		select {
		case e := <-chA:
			if e.IntentID != "i1" {
				t.Errorf("got event %+v, want intent i1", e)
			}
		default:
			t.Fatal("subscriber of bill-a got nothing")
		}
		select {
		case e := <-chB:
			t.Errorf("subscriber of bill-b got foreign event %+v", e)
		default:
		}
	})

	t.Run("fanout to multiple subscribers", func(t *testing.T) {
		hub := NewHub()
		ch1, cancel1 := hub.Subscribe("bill-a")
		defer cancel1()
		ch2, cancel2 := hub.Subscribe("bill-a")
		defer cancel2()

		hub.Publish(ctx, Event{Type: EventBillSettled, BillID: "bill-a"})

		for i, ch := range []<-chan Event{ch1, ch2} {
			select {
			case e := <-ch:
				if e.Type != EventBillSettled {
					t.Errorf("subscriber %d got %s, want %s", i, e.Type, EventBillSettled)
				}
			default:
				t.Errorf("subscriber %d got nothing", i)
			}
		}
	})

	t.Run("cancel stops delivery", func(t *testing.T) {
		hub := NewHub()
		ch, cancel := hub.Subscribe("bill-a")
		cancel()

		// Must not panic on the closed channel.
		hub.Publish(ctx, Event{Type: EventIntentFailed, BillID: "bill-a"})

		if _, ok := <-ch; ok {
			t.Error("cancelled subscriber still received an event")
		}
	})

	t.Run("slow subscriber loses events instead of blocking", func(t *testing.T) {
		hub := NewHub()
		ch, cancel := hub.Subscribe("bill-a")
		defer cancel()

		// Overfill the buffer; Publish must return every time.
		for i := 0; i < subscriberBuffer+5; i++ {
			hub.Publish(ctx, Event{Type: EventIntentConfirmed, BillID: "bill-a"})
		}
		if got := len(ch); got != subscriberBuffer {
			t.Errorf("buffered events = %d, want %d", got, subscriberBuffer)
		}
	})
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	hub1 := NewHub()
	hub2 := NewHub()
	ch1, cancel1 := hub1.Subscribe("bill-a")
	defer cancel1()
	ch2, cancel2 := hub2.Subscribe("bill-a")
	defer cancel2()

	m := Multi{hub1, hub2}
	m.Publish(ctx, Event{Type: EventIntentConfirmed, BillID: "bill-a"})

	if len(ch1) != 1 || len(ch2) != 1 {
		t.Errorf("fanout = %d/%d events, want 1/1", len(ch1), len(ch2))
	}
}
