package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/treelogistics/driverdesk/internal/models"
	"github.com/treelogistics/driverdesk/internal/whatsapp"
)

func TestValidateAndCanonicalizeRecipient(t *testing.T) {
	service := NewWhatsAppService(whatsapp.NewMockClient())

	tests := []struct {
		name      string
		recipient string
		want      string
		wantErr   bool
	}{
		{"e164", "+4915551234567", "4915551234567", false},
		{"already digits", "4915551234567", "4915551234567", false},
		{"formatted", "+49 155 512-34567", "4915551234567", false},
		{"whatsapp prefix", "whatsapp:+4915551234567", "4915551234567", false},
		{"empty", "", "", true},
		{"no digits", "not-a-number", "", true},
		{"too short", "12345", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.ValidateAndCanonicalizeRecipient(tt.recipient)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAndCanonicalizeRecipient(%q) error = %v, wantErr %v", tt.recipient, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateAndCanonicalizeRecipient(%q) = %q, want %q", tt.recipient, got, tt.want)
			}
		})
	}
}

func TestValidateEmptyRecipientError(t *testing.T) {
	service := NewWhatsAppService(whatsapp.NewMockClient())
	_, err := service.ValidateAndCanonicalizeRecipient("")
	if !errors.Is(err, models.ErrEmptyRecipient) {
		t.Errorf("error = %v, want ErrEmptyRecipient", err)
	}
}

func TestWhatsAppServiceSendMessageCanonicalizes(t *testing.T) {
	mock := whatsapp.NewMockClient()
	service := NewWhatsAppService(mock)

	if err := service.SendMessage(context.Background(), "+49 155 512-34567", "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].To != "4915551234567" {
		t.Errorf("To = %q, want canonicalized digits", sent[0].To)
	}
	if sent[0].Body != "hello" {
		t.Errorf("Body = %q, want hello", sent[0].Body)
	}
}

func TestWhatsAppServiceSendMessageInvalidRecipient(t *testing.T) {
	mock := whatsapp.NewMockClient()
	service := NewWhatsAppService(mock)

	if err := service.SendMessage(context.Background(), "12", "hello"); err == nil {
		t.Error("SendMessage() accepted a too-short recipient")
	}
	if len(mock.Sent()) != 0 {
		t.Error("message should not reach the client for an invalid recipient")
	}
}
