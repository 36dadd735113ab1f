package enquiry

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rp-jtw/storefront/internal/logging"
	"github.com/rp-jtw/storefront/internal/notification"
)

func TestFormatSingleItem(t *testing.T) {
	got := Format([]Line{{ProductID: "p1", Name: "Ring", Quantity: 1, UnitPrice: 500}}, 500)
	want := "🛍️ *New Product Enquiry*\n\n" +
		"*1. Ring*\n• Product ID: p1\n• Quantity: 1\n• Price: ₹500\n\n" +
		"━━━━━━━━━━━━━━\n*Total Items:* 1\n*Estimated Total:* ₹500\n\n" +
		"📞 Please contact me regarding this enquiry.\n"
	require.Equal(t, want, got)
}

func TestFormatFallbacks(t *testing.T) {
	got := Format([]Line{
		{ProductID: "p9"},
		{ProductID: "p2", Name: "Chain", Quantity: 3, UnitPrice: 1250.5},
	}, 3751.5)

	require.Contains(t, got, "*1. Product*\n• Product ID: p9\n• Quantity: 1\n• Price: ₹N/A\n\n")
	require.Contains(t, got, "*2. Chain*\n• Product ID: p2\n• Quantity: 3\n• Price: ₹1250.5\n\n")
	require.Contains(t, got, "*Total Items:* 2\n")
	require.Contains(t, got, "*Estimated Total:* ₹3,751.5\n")
}

func TestFormatEmptyCart(t *testing.T) {
	got := Format(nil, 0)
	require.True(t, strings.HasPrefix(got, "🛍️ *New Product Enquiry*\n\n━━━━"))
	require.Contains(t, got, "*Total Items:* 0\n*Estimated Total:* ₹0\n")
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		0:          "0",
		250:        "250",
		1000:       "1,000",
		99999:      "99,999",
		123456:     "1,23,456",
		12345678:   "1,23,45,678",
		1234.5:     "1,234.5",
		1234.56789: "1,234.568",
		-150000:    "-1,50,000",
	}
	for in, want := range cases {
		require.Equal(t, want, FormatAmount(in), "amount %v", in)
	}
}

func TestEncodeURIComponent(t *testing.T) {
	require.Equal(t, "a%20b%26c%3Dd!'()*-_.~", EncodeURIComponent("a b&c=d!'()*-_.~"))
	require.Equal(t, "%E2%82%B9500%0A", EncodeURIComponent("₹500\n"))
}

func TestDeepLinkRoundTrips(t *testing.T) {
	msg := Format([]Line{{ProductID: "p1", Name: "Ring", Quantity: 1, UnitPrice: 500}}, 500)
	link := DeepLink("wa.me", "919876543210", msg)

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "wa.me", u.Host)
	require.Equal(t, "/919876543210", u.Path)
	require.Equal(t, msg, u.Query().Get("text"))
}

type recordingNotifier struct {
	sent []notification.Message
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	r.sent = append(r.sent, m)
	return r.err
}

func TestDispatchActions(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("smtp down")}
	d := NewDispatcher("wa.me", "+919876543210", rec, logging.Discard())
	lines := []Line{{ProductID: "p1", Name: "Ring", Quantity: 2, UnitPrice: 500}}

	h, err := d.Dispatch(context.Background(), "s1", lines, 1000, "Mozilla/5.0 Chrome/120")
	require.NoError(t, err)
	require.Equal(t, ActionOpenLink, h.Action)
	require.True(t, strings.HasPrefix(h.URL, "https://wa.me/919876543210?text="))
	require.Equal(t, 1, h.Items)

	h, err = d.Dispatch(context.Background(), "s1", lines, 1000, "Mozilla/5.0 WhatsApp/2.24")
	require.NoError(t, err)
	require.Equal(t, ActionCopyFallback, h.Action)
	require.Equal(t, Format(lines, 1000), h.Message)
	require.NotEmpty(t, h.URL)

	require.Len(t, rec.sent, 2)
	require.Equal(t, notification.KindEnquiryDispatched, rec.sent[0].Kind)
	require.Equal(t, "919876543210", rec.sent[0].Destination)
}

func TestDispatchRequiresMerchantPhone(t *testing.T) {
	d := NewDispatcher("wa.me", "", nil, logging.Discard())
	_, err := d.Dispatch(context.Background(), "s1", nil, 0, "")
	require.Error(t, err)
}
