package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smartwell-la/smartwell-platform/internal/events"
	"github.com/smartwell-la/smartwell-platform/internal/observability/metrics"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// EmailDeliveryHandler sends "email.send" outbox entries through an
// EmailSender. Unknown event types are acknowledged without action so
// they do not clog the outbox.
type EmailDeliveryHandler struct {
	sender  EmailSender
	metrics *metrics.PlatformMetrics
	logger  *logging.Logger
}

// NewEmailDeliveryHandler creates the outbox handler for email events.
func NewEmailDeliveryHandler(sender EmailSender, m *metrics.PlatformMetrics, logger *logging.Logger) *EmailDeliveryHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailDeliveryHandler{sender: sender, metrics: m, logger: logger}
}

// Handle decodes and sends a single email entry.
func (h *EmailDeliveryHandler) Handle(ctx context.Context, entry events.OutboxEntry) error {
	if entry.Type != EventEmailSend {
		h.logger.Warn("unknown outbox event type, skipping", "type", entry.Type, "id", entry.ID)
		return nil
	}

	var msg EmailMessage
	if err := json.Unmarshal(entry.Payload, &msg); err != nil {
		// A malformed payload will never succeed on retry.
		h.logger.Error("malformed email payload, dropping", "id", entry.ID, "error", err)
		return nil
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		h.metrics.ObserveEmailFailure()
		return fmt.Errorf("notify: send email: %w", err)
	}
	return nil
}
