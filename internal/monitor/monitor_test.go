package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/treelogistics/driverdesk/internal/models"
)

type fakeSource struct {
	done        []models.DriverRequest
	notified    map[string]bool
	notifyErr   error
	markFail    map[string]bool
	markedCalls int
}

func newFakeSource(done ...models.DriverRequest) *fakeSource {
	return &fakeSource{done: done, notified: make(map[string]bool), markFail: make(map[string]bool)}
}

func (f *fakeSource) RequestsByStatus(ctx context.Context, status models.RequestStatus) ([]models.DriverRequest, error) {
	var out []models.DriverRequest
	for _, r := range f.done {
		if !f.notified[r.RowID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) MarkNotified(ctx context.Context, rowID string) error {
	f.markedCalls++
	if f.markFail[rowID] {
		return errors.New("write failed")
	}
	f.notified[rowID] = true
	return nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) NotifyCompletion(ctx context.Context, req *models.DriverRequest) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, req.RowID)
	return nil
}

func doneRequest(rowID string) models.DriverRequest {
	return models.DriverRequest{
		RowID: rowID, Phone: "+4915551234", FirstName: "Maria",
		Category: models.CategoryEquipment, Status: models.StatusDone,
	}
}

func TestMonitorNotifiesAndMarks(t *testing.T) {
	source := newFakeSource(doneRequest("REQ-1"), doneRequest("REQ-2"))
	notifier := &fakeNotifier{}
	m := New(source, notifier)

	if err := m.CheckAndNotify(context.Background()); err != nil {
		t.Fatalf("CheckAndNotify() error = %v", err)
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("notified %d drivers, want 2", len(notifier.sent))
	}
	if !source.notified["REQ-1"] || !source.notified["REQ-2"] {
		t.Errorf("notified flags = %+v, want both marked", source.notified)
	}

	// Second pass finds nothing to do.
	if err := m.CheckAndNotify(context.Background()); err != nil {
		t.Fatalf("CheckAndNotify() second pass error = %v", err)
	}
	if len(notifier.sent) != 2 {
		t.Errorf("second pass resent notifications: %v", notifier.sent)
	}
}

func TestMonitorNotifyFailureRetriesNextPass(t *testing.T) {
	source := newFakeSource(doneRequest("REQ-1"))
	notifier := &fakeNotifier{err: errors.New("send failed")}
	m := New(source, notifier)

	if err := m.CheckAndNotify(context.Background()); err != nil {
		t.Fatalf("CheckAndNotify() error = %v", err)
	}
	if source.notified["REQ-1"] {
		t.Error("request marked notified although the driver was never told")
	}

	notifier.err = nil
	if err := m.CheckAndNotify(context.Background()); err != nil {
		t.Fatalf("CheckAndNotify() retry error = %v", err)
	}
	if len(notifier.sent) != 1 || !source.notified["REQ-1"] {
		t.Errorf("retry pass: sent = %v, notified = %v", notifier.sent, source.notified)
	}
}

func TestMonitorDoesNotResendAfterMarkFailure(t *testing.T) {
	source := newFakeSource(doneRequest("REQ-1"))
	source.markFail["REQ-1"] = true
	notifier := &fakeNotifier{}
	m := New(source, notifier)

	if err := m.CheckAndNotify(context.Background()); err != nil {
		t.Fatalf("CheckAndNotify() error = %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent = %v, want one notification", notifier.sent)
	}

	// Status write recovers; the message must not go out again.
	source.markFail["REQ-1"] = false
	if err := m.CheckAndNotify(context.Background()); err != nil {
		t.Fatalf("CheckAndNotify() second pass error = %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("driver notified twice: %v", notifier.sent)
	}
	if !source.notified["REQ-1"] {
		t.Error("request should be marked notified on the second pass")
	}
}
