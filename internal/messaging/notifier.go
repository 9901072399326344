package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/treelogistics/driverdesk/internal/flow"
	"github.com/treelogistics/driverdesk/internal/i18n"
	"github.com/treelogistics/driverdesk/internal/models"
)

// Notifier tells drivers about completed requests and opens the
// satisfaction survey afterwards.
type Notifier struct {
	service Service
	flows   flow.Store
}

// NewNotifier creates a Notifier.
func NewNotifier(service Service, flows flow.Store) *Notifier {
	return &Notifier{service: service, flows: flows}
}

// NotifyCompletion sends the completion message for a request followed
// by the feedback prompt, then opens a satisfaction rating flow so the
// driver's next digit reply is understood as a rating.
func (n *Notifier) NotifyCompletion(ctx context.Context, req *models.DriverRequest) error {
	lang := i18n.Detect(req.Body)
	message := i18n.Completion(lang, req.FirstName, req.Category) + "\n\n" + i18n.FeedbackPrompt(lang)

	if err := n.service.SendMessage(ctx, req.Phone, message); err != nil {
		return fmt.Errorf("failed to send completion notification for %s: %w", req.RowID, err)
	}

	state := &models.ConversationState{Step: models.StepSatisfactionRating}
	if err := n.flows.Put(ctx, req.Phone, state); err != nil {
		// The driver was notified; a failed survey open only costs the rating.
		slog.Error("Notifier failed to open satisfaction flow", "error", err, "phone", req.Phone)
		return nil
	}
	slog.Info("Notifier sent completion notification", "rowID", req.RowID, "phone", req.Phone, "lang", lang)
	return nil
}
