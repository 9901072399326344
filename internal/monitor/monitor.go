// Package monitor watches the request store for completed requests and
// notifies the drivers who filed them.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/treelogistics/driverdesk/internal/models"
)

// DefaultInterval is how often the monitor polls for completed requests.
const DefaultInterval = 2 * time.Minute

// RequestSource is the slice of the request store the monitor needs.
type RequestSource interface {
	RequestsByStatus(ctx context.Context, status models.RequestStatus) ([]models.DriverRequest, error)
	MarkNotified(ctx context.Context, rowID string) error
}

// CompletionNotifier delivers the completion message to the driver.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, req *models.DriverRequest) error
}

// Monitor polls for requests marked done and notifies drivers exactly
// once. The processed set guards against double sends when a
// MarkNotified write fails after the message already went out.
type Monitor struct {
	requests RequestSource
	notifier CompletionNotifier

	mu        sync.Mutex
	processed map[string]bool
}

// New creates a Monitor.
func New(requests RequestSource, notifier CompletionNotifier) *Monitor {
	return &Monitor{
		requests:  requests,
		notifier:  notifier,
		processed: make(map[string]bool),
	}
}

// CheckAndNotify runs one polling pass. Failures on individual requests
// are logged and retried on the next pass; the pass itself only fails
// when the store cannot be queried at all.
func (m *Monitor) CheckAndNotify(ctx context.Context) error {
	done, err := m.requests.RequestsByStatus(ctx, models.StatusDone)
	if err != nil {
		return fmt.Errorf("failed to query completed requests: %w", err)
	}
	if len(done) == 0 {
		return nil
	}
	slog.Debug("Monitor found completed requests", "count", len(done))

	for i := range done {
		req := &done[i]

		m.mu.Lock()
		alreadySent := m.processed[req.RowID]
		m.mu.Unlock()
		if alreadySent {
			// Notified earlier but the status write failed; try the
			// write again without resending the message.
			if err := m.requests.MarkNotified(ctx, req.RowID); err != nil {
				slog.Error("Monitor failed to mark request notified", "error", err, "rowID", req.RowID)
			}
			continue
		}

		if err := m.notifier.NotifyCompletion(ctx, req); err != nil {
			slog.Error("Monitor failed to notify driver", "error", err, "rowID", req.RowID, "phone", req.Phone)
			continue
		}

		m.mu.Lock()
		m.processed[req.RowID] = true
		m.mu.Unlock()

		if err := m.requests.MarkNotified(ctx, req.RowID); err != nil {
			slog.Error("Monitor failed to mark request notified", "error", err, "rowID", req.RowID)
			continue
		}

		m.mu.Lock()
		delete(m.processed, req.RowID)
		m.mu.Unlock()
	}
	return nil
}
