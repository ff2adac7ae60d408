package settlement

import (
	"context"
	"log/slog"
	"time"
)

// Monitor drives the reconciler on two overlapping schedules: a fast
// cycle for quick confirmation after a payer taps the deep link, and a
// slower one that doubles as a safety net. The cycles do the same work;
// per-intent idempotence makes their overlap safe, so no coordination
// between them is attempted.
type Monitor struct {
	reconciler *Reconciler

	fastInterval     time.Duration
	detailedInterval time.Duration

	stopChan chan struct{}
}

// NewMonitor creates a monitor with the given cycle intervals.
func NewMonitor(reconciler *Reconciler, fast, detailed time.Duration) *Monitor {
	return &Monitor{
		reconciler:       reconciler,
		fastInterval:     fast,
		detailedInterval: detailed,
		stopChan:         make(chan struct{}),
	}
}

// Start launches the polling loop in the background. ctx cancels
// in-flight reconcile work; Stop ends the loop.
func (m *Monitor) Start(ctx context.Context) {
	go m.loop(ctx)
	slog.Info("settlement monitor started",
		"fast_interval", m.fastInterval,
		"detailed_interval", m.detailedInterval,
	)
}

// Stop terminates the polling loop. Safe to call once.
func (m *Monitor) Stop() {
	close(m.stopChan)
}

func (m *Monitor) loop(ctx context.Context) {
	fast := time.NewTicker(m.fastInterval)
	detailed := time.NewTicker(m.detailedInterval)
	defer fast.Stop()
	defer detailed.Stop()

	for {
		select {
		case <-fast.C:
			m.reconciler.ReconcileAllPending(ctx)
		case <-detailed.C:
			m.reconciler.ReconcileAllPending(ctx)
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		}
	}
}
