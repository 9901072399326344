// Package messaging provides pluggable message delivery for DriverDesk.
//
// Two transports are supported: a Whatsmeow-based WhatsApp client for
// direct WhatsApp Web connections, and Twilio's WhatsApp API where the
// webhook model fits the deployment better.
package messaging

import (
	"context"
	"errors"

	"github.com/treelogistics/driverdesk/internal/models"
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier. Each transport applies its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming driver messages.
	Responses() <-chan models.Response
}
