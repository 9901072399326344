package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/treelogistics/driverdesk/internal/models"
)

// fakeRequestStore records saved requests in memory for engine tests.
type fakeRequestStore struct {
	saved    []*models.DriverRequest
	saveErr  error
	feedback map[string]string
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{feedback: make(map[string]string)}
}

func (f *fakeRequestStore) SaveRequest(ctx context.Context, req *models.DriverRequest) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, req)
	return nil
}

func (f *fakeRequestStore) RequestsByPhone(ctx context.Context, phone string, limit int) ([]models.DriverRequest, error) {
	var out []models.DriverRequest
	for i := len(f.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if f.saved[i].Phone == phone {
			out = append(out, *f.saved[i])
		}
	}
	return out, nil
}

func (f *fakeRequestStore) SetLatestFeedback(ctx context.Context, phone, feedback string) error {
	f.feedback[phone] = feedback
	return nil
}

// fakeRouter returns a canned intent, or an error.
type fakeRouter struct {
	intent models.Intent
	err    error
}

func (f *fakeRouter) Classify(ctx context.Context, text string) (models.Intent, error) {
	return f.intent, f.err
}

const testPhone = "+4915551234"

func sendMessage(t *testing.T, e *Engine, body string) string {
	t.Helper()
	reply, err := e.HandleMessage(context.Background(), testPhone, body, "Maria")
	if err != nil {
		t.Fatalf("HandleMessage(%q) error = %v", body, err)
	}
	return reply
}

func TestEngineScannerRequestEndToEnd(t *testing.T) {
	requests := newFakeRequestStore()
	e := NewEngine(NewMemoryStore(), requests)

	reply := sendMessage(t, e, "hi")
	if !strings.Contains(reply, "Welcome") {
		t.Errorf("first contact reply = %q, want welcome prompt", reply)
	}

	reply = sendMessage(t, e, "Maria Popescu DBE3")
	if !strings.Contains(reply, "Maria") {
		t.Errorf("profile reply = %q, want greeting by first name", reply)
	}

	reply = sendMessage(t, e, "My scanner is broken, the screen stays black")
	if len(requests.saved) != 1 {
		t.Fatalf("saved %d requests, want 1", len(requests.saved))
	}
	req := requests.saved[0]
	if req.Category != models.CategoryEquipment {
		t.Errorf("Category = %q, want Equipment", req.Category)
	}
	if req.Station != "DBE3" {
		t.Errorf("Station = %q, want DBE3", req.Station)
	}
	if req.Status != models.StatusReview {
		t.Errorf("Status = %q, want review", req.Status)
	}
	if !strings.HasPrefix(req.RowID, "REQ-") {
		t.Errorf("RowID = %q, want REQ- prefix", req.RowID)
	}
	if !strings.Contains(reply, req.RowID) {
		t.Errorf("acknowledgment %q should quote the request id", reply)
	}
	if !strings.Contains(reply, "station office") {
		t.Errorf("acknowledgment %q should carry scanner pickup info", reply)
	}

	// The flow is cleared; a new message starts a fresh conversation.
	reply = sendMessage(t, e, "hello again")
	if !strings.Contains(reply, "Welcome") {
		t.Errorf("post-filing reply = %q, want a fresh welcome", reply)
	}
}

func TestEngineRejectsUnknownStation(t *testing.T) {
	e := NewEngine(NewMemoryStore(), newFakeRequestStore())

	sendMessage(t, e, "hi")
	reply := sendMessage(t, e, "Maria Popescu DBE9")
	if !strings.Contains(reply, "DBE2") || !strings.Contains(reply, "DBE3") {
		t.Errorf("unknown station reply = %q, want the valid station list", reply)
	}

	// Still in data collection: a valid profile is accepted next.
	reply = sendMessage(t, e, "Maria Popescu DBE2")
	if !strings.Contains(reply, "What can we help you with") {
		t.Errorf("reply = %q, want request prompt after valid profile", reply)
	}
}

func TestEngineRetryThenForceAccept(t *testing.T) {
	requests := newFakeRequestStore()
	e := NewEngine(NewMemoryStore(), requests)

	sendMessage(t, e, "hi")
	sendMessage(t, e, "Maria Popescu DBE3")

	reply := sendMessage(t, e, "help")
	if len(requests.saved) != 0 {
		t.Fatal("too-short message should not be filed on first attempt")
	}
	if reply == "" {
		t.Fatal("rejection should carry a follow-up question")
	}

	sendMessage(t, e, "help")
	if len(requests.saved) != 1 {
		t.Fatalf("saved %d requests, want 1 force-accepted after retry", len(requests.saved))
	}
	if requests.saved[0].Category != models.CategoryGeneral {
		t.Errorf("Category = %q, want General for force-accepted text", requests.saved[0].Category)
	}
}

func TestEnginePersistFailureKeepsConversation(t *testing.T) {
	requests := newFakeRequestStore()
	requests.saveErr = errors.New("store offline")
	e := NewEngine(NewMemoryStore(), requests)

	sendMessage(t, e, "hi")
	sendMessage(t, e, "Maria Popescu DBE3")

	reply, err := e.HandleMessage(context.Background(), testPhone, "My scanner is broken, screen is dead", "Maria")
	if err == nil {
		t.Error("HandleMessage() should report the persistence failure")
	}
	if !strings.Contains(reply, "again") {
		t.Errorf("reply = %q, want an apology asking to resend", reply)
	}

	// The conversation survives so the resend lands in the same step.
	requests.saveErr = nil
	sendMessage(t, e, "My scanner is broken, screen is dead")
	if len(requests.saved) != 1 {
		t.Fatalf("saved %d requests after resend, want 1", len(requests.saved))
	}
	if requests.saved[0].FirstName != "Maria" {
		t.Errorf("FirstName = %q, profile should survive the failed attempt", requests.saved[0].FirstName)
	}
}

func TestEngineUnknownStepRestarts(t *testing.T) {
	flows := NewMemoryStore()
	e := NewEngine(flows, newFakeRequestStore())

	ctx := context.Background()
	if err := flows.Put(ctx, testPhone, &models.ConversationState{Step: "LEGACY_STEP"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reply := sendMessage(t, e, "hello")
	if !strings.Contains(reply, "Welcome") {
		t.Errorf("reply = %q, want restart welcome for unknown step", reply)
	}
	state, _ := flows.Get(ctx, testPhone)
	if state == nil || state.Step != models.StepDataCollection {
		t.Errorf("state after restart = %+v, want data collection", state)
	}
}

func TestEngineRouterOverridesKeywordCategory(t *testing.T) {
	requests := newFakeRequestStore()
	router := &fakeRouter{intent: models.Intent{Category: models.CategoryVehicle, Confidence: 0.9}}
	e := NewEngine(NewMemoryStore(), requests, WithIntentRouter(router))

	sendMessage(t, e, "hi")
	sendMessage(t, e, "Maria Popescu DBE3")
	sendMessage(t, e, "I scratched the van against the loading dock this morning")

	if len(requests.saved) != 1 {
		t.Fatalf("saved %d requests, want 1", len(requests.saved))
	}
	req := requests.saved[0]
	if req.Category != models.CategoryVehicle {
		t.Errorf("Category = %q, want router's Vehicle", req.Category)
	}
	if req.Priority != models.PriorityCritical {
		t.Errorf("Priority = %q, want Critical for vehicle damage", req.Priority)
	}
	if req.Status != models.StatusUrgent {
		t.Errorf("Status = %q, want urgent for critical priority", req.Status)
	}
}

func TestEngineRouterErrorFallsBackToKeywords(t *testing.T) {
	requests := newFakeRequestStore()
	router := &fakeRouter{err: errors.New("model unavailable")}
	e := NewEngine(NewMemoryStore(), requests, WithIntentRouter(router))

	sendMessage(t, e, "hi")
	sendMessage(t, e, "Maria Popescu DBE3")
	sendMessage(t, e, "I need vacation from 12.08 to 16.08")

	if len(requests.saved) != 1 {
		t.Fatalf("saved %d requests, want 1", len(requests.saved))
	}
	if requests.saved[0].Category != models.CategoryVacation {
		t.Errorf("Category = %q, want keyword Vacation/Sick Leave fallback", requests.saved[0].Category)
	}
}

func TestEngineGuidedOnboardingAndMenu(t *testing.T) {
	requests := newFakeRequestStore()
	e := NewEngine(NewMemoryStore(), requests, WithGuidedOnboarding(true))

	reply := sendMessage(t, e, "hello")
	if !strings.Contains(reply, "first name") {
		t.Fatalf("reply = %q, want first name question", reply)
	}
	sendMessage(t, e, "Maria")
	reply = sendMessage(t, e, "Popescu")
	if !strings.Contains(reply, "station") {
		t.Fatalf("reply = %q, want station question", reply)
	}
	reply = sendMessage(t, e, "1")
	if !strings.Contains(reply, "Reply with a number") {
		t.Fatalf("reply = %q, want category menu", reply)
	}

	reply = sendMessage(t, e, "4")
	if !strings.Contains(reply, "describe") {
		t.Fatalf("reply = %q, want detail prompt after category choice", reply)
	}

	sendMessage(t, e, "I need a new power bank for my scanner")
	sendMessage(t, e, "The old one does not hold charge past noon")

	if len(requests.saved) != 1 {
		t.Fatalf("saved %d requests, want 1 after two details", len(requests.saved))
	}
	req := requests.saved[0]
	if req.Category != models.CategoryEquipment {
		t.Errorf("Category = %q, want Equipment", req.Category)
	}
	if req.Station != "DBE3" {
		t.Errorf("Station = %q, want DBE3 for menu reply 1", req.Station)
	}
	if !strings.Contains(req.Body, "power bank") || !strings.Contains(req.Body, "hold charge") {
		t.Errorf("Body = %q, want both collected details", req.Body)
	}
}

func TestEngineSatisfactionRating(t *testing.T) {
	flows := NewMemoryStore()
	requests := newFakeRequestStore()
	e := NewEngine(flows, requests)

	ctx := context.Background()
	if err := flows.Put(ctx, testPhone, &models.ConversationState{Step: models.StepSatisfactionRating}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reply := sendMessage(t, e, "maybe later")
	if !strings.Contains(reply, "1") {
		t.Errorf("reply = %q, want rating re-prompt", reply)
	}

	reply = sendMessage(t, e, "1")
	if !strings.Contains(reply, "Thank you") {
		t.Errorf("reply = %q, want thanks", reply)
	}
	if got := requests.feedback[testPhone]; !strings.Contains(got, "Very Satisfied") {
		t.Errorf("feedback = %q, want Very Satisfied", got)
	}
	state, _ := flows.Get(ctx, testPhone)
	if state != nil {
		t.Errorf("state after rating = %+v, want cleared", state)
	}
}

func TestEngineStatusCheckWithoutFlow(t *testing.T) {
	requests := newFakeRequestStore()
	requests.saved = append(requests.saved, &models.DriverRequest{
		RowID: "REQ-1", Phone: testPhone, Category: models.CategorySalary, Status: models.StatusReview,
	})
	e := NewEngine(NewMemoryStore(), requests)

	reply := sendMessage(t, e, "status")
	if !strings.Contains(reply, "REQ-1") {
		t.Errorf("reply = %q, want request history", reply)
	}
	if !strings.Contains(reply, "in review") {
		t.Errorf("reply = %q, want status label", reply)
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    models.Profile
		wantErr bool
	}{
		{"simple", "Maria Popescu DBE3", models.Profile{FirstName: "Maria", LastName: "Popescu", Station: "DBE3"}, false},
		{"lowercase station", "Maria Popescu dbe2", models.Profile{FirstName: "Maria", LastName: "Popescu", Station: "DBE2"}, false},
		{"double last name", "Ana Maria Ionescu DBE3", models.Profile{FirstName: "Ana", LastName: "Maria Ionescu", Station: "DBE3"}, false},
		{"trailing tokens ignored", "Maria Popescu DBE3 thanks", models.Profile{FirstName: "Maria", LastName: "Popescu", Station: "DBE3"}, false},
		{"unknown station", "Maria Popescu DBE9", models.Profile{}, true},
		{"too few tokens", "Maria DBE3", models.Profile{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProfile(tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseProfile(%q) error = %v, wantErr %v", tt.body, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseProfile(%q) = %+v, want %+v", tt.body, got, tt.want)
			}
		})
	}
}
