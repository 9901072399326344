package messaging

import (
	"context"
	"log/slog"

	"github.com/treelogistics/driverdesk/internal/flow"
)

// ResponseHandler consumes inbound driver messages from a Service and
// runs them through the conversation engine, sending replies back over
// the same transport.
type ResponseHandler struct {
	service Service
	engine  *flow.Engine
}

// NewResponseHandler creates a handler bridging a messaging service and
// the conversation engine.
func NewResponseHandler(service Service, engine *flow.Engine) *ResponseHandler {
	return &ResponseHandler{service: service, engine: engine}
}

// Run consumes the response channel until the context is cancelled or
// the channel closes. It is intended to run as a goroutine.
func (h *ResponseHandler) Run(ctx context.Context) {
	slog.Debug("ResponseHandler starting")
	for {
		select {
		case <-ctx.Done():
			slog.Debug("ResponseHandler stopping due to context cancellation")
			return
		case resp, ok := <-h.service.Responses():
			if !ok {
				slog.Debug("ResponseHandler stopping, response channel closed")
				return
			}
			reply, err := h.engine.HandleMessage(ctx, resp.From, resp.Body, resp.ProfileName)
			if err != nil {
				slog.Error("ResponseHandler engine error", "error", err, "from", resp.From)
			}
			if reply == "" {
				continue
			}
			if err := h.service.SendMessage(ctx, resp.From, reply); err != nil {
				slog.Error("ResponseHandler failed to send reply", "error", err, "to", resp.From)
			}
		}
	}
}
