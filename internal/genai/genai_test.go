package genai

import (
	"testing"

	"github.com/treelogistics/driverdesk/internal/models"
)

func TestParseIntentJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    models.Intent
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"category": "Equipment", "confidence": 0.85, "extracted_info": {"item": "scanner"}}`,
			want: models.Intent{Category: models.CategoryEquipment, Confidence: 0.85, ExtractedInfo: map[string]string{"item": "scanner"}},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"category\": \"Vacation/Sick Leave\", \"confidence\": 0.9}\n```",
			want: models.Intent{Category: models.CategoryVacation, Confidence: 0.9},
		},
		{
			name: "case insensitive category",
			raw:  `{"category": "salary", "confidence": 0.7}`,
			want: models.Intent{Category: models.CategorySalary, Confidence: 0.7},
		},
		{
			name:    "invented category",
			raw:     `{"category": "Payroll Issues", "confidence": 0.9}`,
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			raw:     `{"category": "General", "confidence": 1.4}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     "The driver needs a new scanner.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntentJSON(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIntentJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Category != tt.want.Category || got.Confidence != tt.want.Confidence {
				t.Errorf("parseIntentJSON() = %+v, want %+v", got, tt.want)
			}
			if tt.want.ExtractedInfo != nil && got.ExtractedInfo["item"] != tt.want.ExtractedInfo["item"] {
				t.Errorf("ExtractedInfo = %+v, want %+v", got.ExtractedInfo, tt.want.ExtractedInfo)
			}
		})
	}
}
