package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/treelogistics/driverdesk/internal/flow"
	"github.com/treelogistics/driverdesk/internal/models"
)

type fakeService struct {
	sent    []struct{ To, Body string }
	sendErr error
}

func (f *fakeService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return recipient, nil
}

func (f *fakeService) SendMessage(ctx context.Context, to, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, struct{ To, Body string }{to, body})
	return nil
}

func (f *fakeService) Start(ctx context.Context) error   { return nil }
func (f *fakeService) Stop() error                       { return nil }
func (f *fakeService) Responses() <-chan models.Response { return nil }

func TestNotifierSendsCompletionAndOpensRating(t *testing.T) {
	flows := flow.NewMemoryStore()
	service := &fakeService{}
	n := NewNotifier(service, flows)

	req := &models.DriverRequest{
		RowID: "REQ-1", Phone: "+4915551234", FirstName: "Maria",
		Category: models.CategoryEquipment, Body: "my scanner is broken",
	}
	if err := n.NotifyCompletion(context.Background(), req); err != nil {
		t.Fatalf("NotifyCompletion() error = %v", err)
	}

	if len(service.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(service.sent))
	}
	body := service.sent[0].Body
	if !strings.Contains(body, "Maria") || !strings.Contains(body, "completed") {
		t.Errorf("message = %q, want completion text", body)
	}
	if !strings.Contains(body, "Very Satisfied") {
		t.Errorf("message = %q, want feedback prompt appended", body)
	}

	state, err := flows.Get(context.Background(), "+4915551234")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if state == nil || state.Step != models.StepSatisfactionRating {
		t.Errorf("state = %+v, want satisfaction rating flow", state)
	}
}

func TestNotifierSendFailureDoesNotOpenRating(t *testing.T) {
	flows := flow.NewMemoryStore()
	service := &fakeService{sendErr: errors.New("transport down")}
	n := NewNotifier(service, flows)

	req := &models.DriverRequest{RowID: "REQ-1", Phone: "+4915551234", FirstName: "Maria", Category: models.CategorySalary}
	if err := n.NotifyCompletion(context.Background(), req); err == nil {
		t.Error("NotifyCompletion() should report the send failure")
	}
	state, _ := flows.Get(context.Background(), "+4915551234")
	if state != nil {
		t.Errorf("state = %+v, want no rating flow after failed send", state)
	}
}
