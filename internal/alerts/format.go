package alerts

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	nairaSymbol = "₦"
	dateLayout  = "2 Jan 2006"
	waBaseURL   = "https://wa.me/"
)

// FormatNaira renders an amount as whole Naira with thousands separators,
// e.g. ₦1,234,568 for 1234567.5. Halves round away from zero.
func FormatNaira(amount decimal.Decimal) string {
	rounded := amount.Round(0)

	digits := rounded.Abs().String()
	var b strings.Builder
	if rounded.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(nairaSymbol)

	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}

	return b.String()
}

// FormatDate renders a calendar date as "5 Jan 2025"
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// DaysBetween returns the number of calendar days from now until date.
// Only the year, month and day of each value are compared, each in its own
// location, so the result does not depend on the time of day.
func DaysBetween(now, date time.Time) int {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// NormalizePhone strips everything but digits from a phone number
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

// WhatsAppURL builds a wa.me deep link that opens a chat with the given
// number, prefilled with text. Spaces are encoded as %20.
func WhatsAppURL(phone, text string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return waBaseURL + NormalizePhone(phone) + "?text=" + encoded
}
