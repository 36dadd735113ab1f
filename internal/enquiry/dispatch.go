package enquiry

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/logging"
	"github.com/rp-jtw/storefront/internal/notification"
)

// Action tells the UI what to do with a Handoff.
type Action string

const (
	// ActionOpenLink opens the deep link in a new tab.
	ActionOpenLink Action = "open_link"
	// ActionCopyFallback copies the message first; the embedded browser of
	// the chat app cannot always follow its own deep links.
	ActionCopyFallback Action = "copy_fallback"
)

// Handoff is how the UI passes an enquiry to the chat app.
type Handoff struct {
	Action  Action  `json:"action"`
	URL     string  `json:"url"`
	Message string  `json:"message"`
	Items   int     `json:"items"`
	Total   float64 `json:"total"`
}

// DeepLink builds https://<host>/<phone>?text=<message>.
func DeepLink(host, phone, message string) string {
	return "https://" + host + "/" + phone + "?text=" + EncodeURIComponent(message)
}

// InApp reports whether the request comes from inside the chat app.
func InApp(userAgent string) bool {
	return strings.Contains(strings.ToLower(userAgent), "whatsapp")
}

// EncodeURIComponent escapes s like the browser function of the same name:
// everything except letters, digits and -_.!~*'() is percent-encoded.
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return uriUnreserved.Replace(escaped)
}

var uriUnreserved = strings.NewReplacer(
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
	"%7E", "~",
)

// Dispatcher hands enquiries to the merchant's chat number.
type Dispatcher struct {
	host     string
	phone    string
	notifier notification.Notifier
	logger   *slog.Logger
}

func NewDispatcher(host, phone string, notifier notification.Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		host:     host,
		phone:    strings.TrimPrefix(strings.TrimSpace(phone), "+"),
		notifier: notifier,
		logger:   logging.Component(logger, "enquiry"),
	}
}

// Dispatch formats lines and returns the handoff for the UI. A failed
// notification is logged and does not fail the handoff.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, lines []Line, total float64, userAgent string) (Handoff, error) {
	if d.phone == "" {
		return Handoff{}, apperr.Invalid("merchantPhone", "Enquiries are not available right now.")
	}
	msg := Format(lines, total)
	h := Handoff{
		Action:  ActionOpenLink,
		URL:     DeepLink(d.host, d.phone, msg),
		Message: msg,
		Items:   len(lines),
		Total:   total,
	}
	if InApp(userAgent) {
		h.Action = ActionCopyFallback
	}

	if d.notifier != nil {
		err := d.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindEnquiryDispatched,
			Destination: d.phone,
			SessionID:   sessionID,
			Items:       len(lines),
			Total:       total,
			Body:        msg,
		})
		if err != nil {
			d.logger.Warn("enquiry notification failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
	}
	d.logger.Info("enquiry dispatched", slog.String("session_id", sessionID), slog.String("action", string(h.Action)), slog.Int("items", len(lines)))
	return h, nil
}
