package notification

import (
	"context"
	"log/slog"
)

const (
	// KindEnquiryDispatched is sent when a customer hands an enquiry to the merchant.
	KindEnquiryDispatched = "enquiry_dispatched"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	SessionID   string
	Items       int
	Total       float64
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send logs the message. The body is left out; it can be long and carries
// the customer's cart.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("session_id", message.SessionID),
		slog.Int("items", message.Items),
		slog.Float64("total", message.Total),
		slog.Int("body_bytes", len(message.Body)),
	)
	return nil
}
