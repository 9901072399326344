package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/treelogistics/driverdesk/internal/models"
)

// TwilioService implements the Service interface using the Twilio
// WhatsApp API. Outbound messages go through the REST API; inbound
// messages arrive via the HTTP webhook and are emitted through
// EmitResponse by the API layer.
type TwilioService struct {
	client    *twilio.RestClient
	from      string
	responses chan models.Response
	mu        sync.RWMutex
	stopped   bool
}

// TwilioOpts holds configuration options for the Twilio service.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	From       string
}

// NewTwilioService creates a TwilioService sending from the given
// WhatsApp-enabled number.
func NewTwilioService(opts TwilioOpts) (*TwilioService, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, fmt.Errorf("twilio credentials not set")
	}
	if opts.From == "" {
		return nil, fmt.Errorf("twilio sender number not set")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: opts.AccountSID,
		Password: opts.AuthToken,
	})
	slog.Info("TwilioService created", "from", opts.From)
	return &TwilioService{
		client:    client,
		from:      opts.From,
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}, nil
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
// It removes all non-numeric characters and validates the result has at least 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	if recipient != canonical {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op; inbound messages arrive via the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the response channel and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
	}()
	return nil
}

// SendMessage sends a WhatsApp message via the Twilio REST API.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	if body == "" {
		return models.ErrEmptyBody
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom("whatsapp:+" + phoneNumberRegex.ReplaceAllString(s.from, ""))
	params.SetTo("whatsapp:+" + canonical)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		slog.Error("TwilioService SendMessage error", "error", err, "to", canonical)
		return fmt.Errorf("failed to send twilio message to %s: %w", canonical, err)
	}
	slog.Info("TwilioService message sent", "to", canonical)
	return nil
}

// Responses returns the channel of inbound driver messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

// EmitResponse feeds a webhook-delivered inbound message into the
// responses channel. Used by deployments that consume Twilio inbound
// traffic asynchronously instead of replying inline with TwiML.
func (s *TwilioService) EmitResponse(resp models.Response) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}
	select {
	case s.responses <- resp:
		slog.Debug("TwilioService inbound message forwarded", "from", resp.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", resp.From)
	}
}
