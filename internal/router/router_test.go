package router

import (
	"context"
	"errors"
	"testing"

	"github.com/treelogistics/driverdesk/internal/models"
)

type fakeClassifier struct {
	intent models.Intent
	err    error
}

func (f *fakeClassifier) ClassifyIntent(ctx context.Context, text string) (models.Intent, error) {
	return f.intent, f.err
}

func TestRuleBasedCategories(t *testing.T) {
	tests := []struct {
		text string
		want models.RequestCategory
	}{
		{"my scanner battery is dead again", models.CategoryEquipment},
		{"I was not paid my full salary this month", models.CategorySalary},
		{"I need days off next week", models.CategoryVacation},
		{"the van has damage on the rear door", models.CategoryVehicle},
		{"can I change my shift on the route tomorrow", models.CategorySchedule},
		{"question about my performance score", models.CategoryPerformance},
	}
	r := New()
	for _, tt := range tests {
		intent, err := r.Classify(context.Background(), tt.text)
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", tt.text, err)
		}
		if intent.Category != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, intent.Category, tt.want)
		}
	}
}

func TestRuleBasedConfidenceScaling(t *testing.T) {
	single := ruleBasedIntent("my scanner is slow")
	double := ruleBasedIntent("my scanner battery is dead")
	if single.Confidence < ConfidenceThreshold {
		t.Errorf("single keyword confidence = %v, want at least %v", single.Confidence, ConfidenceThreshold)
	}
	if double.Confidence <= single.Confidence {
		t.Errorf("two keyword hits should score higher: %v <= %v", double.Confidence, single.Confidence)
	}
	none := ruleBasedIntent("where do I park")
	if none.Category != models.CategoryGeneral || none.Confidence >= ConfidenceThreshold {
		t.Errorf("no-hit intent = %+v, want low-confidence General", none)
	}
}

func TestRuleBasedPrecedence(t *testing.T) {
	// The first matching rule wins even when a later category has more
	// keyword hits.
	intent := ruleBasedIntent("my scanner broke, do not deduct my salary payment or wage for it")
	if intent.Category != models.CategoryEquipment {
		t.Errorf("Category = %q, want Equipment to outrank Salary", intent.Category)
	}

	wantOrder := []models.RequestCategory{
		models.CategoryEquipment,
		models.CategorySalary,
		models.CategoryVacation,
		models.CategoryVehicle,
		models.CategorySchedule,
		models.CategoryPerformance,
	}
	if len(categoryKeywords) != len(wantOrder) {
		t.Fatalf("rule count = %d, want %d", len(categoryKeywords), len(wantOrder))
	}
	for i, ck := range categoryKeywords {
		if ck.category != wantOrder[i] {
			t.Errorf("rule %d = %q, want %q", i, ck.category, wantOrder[i])
		}
	}
}

func TestClassifyUnsureReturnsNoCategory(t *testing.T) {
	r := New()
	intent, err := r.Classify(context.Background(), "where do I park in the morning")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if intent.Category != "" {
		t.Errorf("Category = %q, want empty when no rule reaches the threshold", intent.Category)
	}
}

func TestClassifierPreferredWhenConfident(t *testing.T) {
	c := &fakeClassifier{intent: models.Intent{Category: models.CategoryHR, Confidence: 0.9}}
	r := New(WithClassifier(c))
	intent, err := r.Classify(context.Background(), "my scanner is broken")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if intent.Category != models.CategoryHR {
		t.Errorf("Category = %q, want classifier's HR over keyword Equipment", intent.Category)
	}
}

func TestClassifierLowConfidenceFallsBack(t *testing.T) {
	c := &fakeClassifier{intent: models.Intent{Category: models.CategoryHR, Confidence: 0.4}}
	r := New(WithClassifier(c))
	intent, err := r.Classify(context.Background(), "my scanner is broken")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if intent.Category != models.CategoryEquipment {
		t.Errorf("Category = %q, want keyword Equipment below threshold", intent.Category)
	}
}

func TestClassifierErrorFallsBack(t *testing.T) {
	c := &fakeClassifier{err: errors.New("model unavailable")}
	r := New(WithClassifier(c))
	intent, err := r.Classify(context.Background(), "vacation from 12.08 to 16.08")
	if err != nil {
		t.Fatalf("Classify() error = %v, fallback should absorb classifier errors", err)
	}
	if intent.Category != models.CategoryVacation {
		t.Errorf("Category = %q, want Vacation/Sick Leave", intent.Category)
	}
}

func TestExtractEntities(t *testing.T) {
	intent := ruleBasedIntent("new iban DE89 3704 0044 0532 0130 00 please")
	if intent.ExtractedInfo["iban"] == "" {
		t.Errorf("ExtractedInfo = %+v, want iban entity", intent.ExtractedInfo)
	}

	intent = ruleBasedIntent("vacation from 12.08 to 16.08")
	if intent.ExtractedInfo["dates"] == "" {
		t.Errorf("ExtractedInfo = %+v, want dates entity", intent.ExtractedInfo)
	}
}
