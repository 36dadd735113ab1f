// Package enquiry turns a priced cart into the message a customer sends to
// the merchant and builds the chat deep link that carries it.
package enquiry

import (
	"strconv"
	"strings"
)

// Line is one cart entry as it appears in the message.
type Line struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice float64
}

const (
	header    = "🛍️ *New Product Enquiry*\n\n"
	separator = "━━━━━━━━━━━━━━\n"
	closing   = "📞 Please contact me regarding this enquiry.\n"
)

// Format renders lines and total into the enquiry text. The layout is fixed;
// merchants read it on their phones and match on the markers.
func Format(lines []Line, total float64) string {
	var b strings.Builder
	b.WriteString(header)
	for i, l := range lines {
		name := l.Name
		if name == "" {
			name = "Product"
		}
		qty := l.Quantity
		if qty == 0 {
			qty = 1
		}
		price := "N/A"
		if l.UnitPrice != 0 {
			price = formatPlain(l.UnitPrice)
		}
		b.WriteString("*" + strconv.Itoa(i+1) + ". " + name + "*\n")
		b.WriteString("• Product ID: " + l.ProductID + "\n")
		b.WriteString("• Quantity: " + strconv.Itoa(qty) + "\n")
		b.WriteString("• Price: ₹" + price + "\n\n")
	}
	b.WriteString(separator)
	b.WriteString("*Total Items:* " + strconv.Itoa(len(lines)) + "\n")
	b.WriteString("*Estimated Total:* ₹" + FormatAmount(total) + "\n\n")
	b.WriteString(closing)
	return b.String()
}

// FormatAmount renders v with Indian digit grouping (12,34,567.5): the last
// three integer digits, then pairs. At most three decimals are kept and
// trailing zeros dropped.
func FormatAmount(v float64) string {
	s := formatPlain(v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var grouped string
	if len(intPart) <= 3 {
		grouped = intPart
	} else {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		parts = append([]string{head}, parts...)
		grouped = strings.Join(parts, ",") + "," + tail
	}
	if hasFrac {
		grouped += "." + frac
	}
	if neg {
		grouped = "-" + grouped
	}
	return grouped
}

// formatPlain prints v with up to three decimals and no trailing zeros.
func formatPlain(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		s = "0"
	}
	return s
}
