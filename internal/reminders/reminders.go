// Package reminders flags supply requests that have sat in an open status
// for too long.
package reminders

import (
	"context"
	"log"
	"time"

	"supplyroute/internal/metrics"
	"supplyroute/internal/model"
	"supplyroute/internal/store"
	"supplyroute/internal/webhooks"
)

type Worker struct {
	Store     store.Store
	Pub       *webhooks.Publisher
	After     time.Duration
	Interval  time.Duration
	BatchSize int
	// OnStall is called for every reminded request after it is touched.
	OnStall func(r model.SupplyRequest)
	Stop    chan struct{}
	now     func() time.Time
}

func NewWorker(s store.Store, pub *webhooks.Publisher, after, interval time.Duration) *Worker {
	return &Worker{Store: s, Pub: pub, After: after, Interval: interval, BatchSize: 100, Stop: make(chan struct{}), now: time.Now}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if _, err := w.RunOnce(ctx); err != nil {
					log.Printf("reminders: %v", err)
				}
				cancel()
			}
		}
	}()
}

// RunOnce emits one reminder per stalled request and returns how many were sent.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.now().UTC()
	items, err := w.Store.ListStalledRequests(ctx, now.Add(-w.After), w.BatchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, r := range items {
		if err := w.Store.TouchReminder(ctx, r.TenantID, r.ID, now); err != nil {
			log.Printf("reminders: touch %s: %v", r.ID, err)
			continue
		}
		r.LastReminderAt = now.Format(time.RFC3339)
		if w.Pub != nil {
			w.Pub.Emit(ctx, r.TenantID, webhooks.EventRequestStalled, map[string]any{
				"id": r.ID, "status": r.Status, "destination": r.Destination, "updatedAt": r.UpdatedAt,
			})
		}
		if w.OnStall != nil {
			w.OnStall(r)
		}
		metrics.RequestReminders.WithLabelValues(r.Status).Inc()
		sent++
	}
	return sent, nil
}
