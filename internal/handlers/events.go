package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mkotov/splitton/internal/notify"
	"github.com/mkotov/splitton/internal/storage"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 25 * time.Second

// EventsHandler streams a bill's settlement events over SSE, backing the
// Mini App's live payment-status view.
type EventsHandler struct {
	bills *BillHandler
	hub   *notify.Hub
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(store storage.Store, hub *notify.Hub) *EventsHandler {
	return &EventsHandler{bills: NewBillHandler(store), hub: hub}
}

// Stream handles GET /api/bills/{billID}/events. Access follows the same
// rules as reading the bill itself.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	bill, err := h.bills.loadBillAuthorized(r)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	events, cancel := h.hub.Subscribe(bill.ID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}
