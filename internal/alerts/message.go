package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// defaultDiscountPercent fills the call to action when an expiry alert
// carries no suggested discount (expired items).
const defaultDiscountPercent = 20

// SingleAlertMessage renders one alert as a notification body.
// Expiry alerts and stock alerts use different templates.
func SingleAlertMessage(a Alert) string {
	if a.Type == TypeExpiry {
		return expiryMessage(a)
	}
	return stockMessage(a)
}

// SingleAlertWhatsAppURL returns a wa.me link carrying SingleAlertMessage for the given number
func SingleAlertWhatsAppURL(a Alert, phone string) string {
	return WhatsAppURL(phone, SingleAlertMessage(a))
}

func expiryMessage(a Alert) string {
	expiry := "unknown"
	if a.ExpiryDate != nil {
		expiry = FormatDate(*a.ExpiryDate)
	}

	days := 0
	if a.DaysUntilExpiry != nil {
		days = *a.DaysUntilExpiry
	}

	discount := defaultDiscountPercent
	if a.SuggestedDiscountPercent != nil {
		discount = *a.SuggestedDiscountPercent
	}

	var b strings.Builder
	b.WriteString("⚠️ *PharmaTrack Expiry Alert*\n\n")
	fmt.Fprintf(&b, "Product: %s\n", a.ProductName)
	fmt.Fprintf(&b, "Expiry Date: %s\n", expiry)
	fmt.Fprintf(&b, "Days Remaining: %d\n", days)
	fmt.Fprintf(&b, "Value at Risk: %s\n\n", FormatNaira(valueAtRisk(a)))
	fmt.Fprintf(&b, "Suggested Action: Apply a %d%% discount to clear this stock before it expires.", discount)
	return b.String()
}

func stockMessage(a Alert) string {
	var b strings.Builder
	b.WriteString("📦 *PharmaTrack Stock Alert*\n\n")
	fmt.Fprintf(&b, "Product: %s\n", a.ProductName)
	fmt.Fprintf(&b, "Current Stock: %d units\n", derefInt(a.CurrentStock))
	fmt.Fprintf(&b, "Estimated Days Until Empty: %d\n", derefInt(a.EstimatedDaysUntilEmpty))
	fmt.Fprintf(&b, "Suggested Reorder Quantity: %d units", derefInt(a.SuggestedReorderQuantity))
	return b.String()
}

// DigestMessage renders a batch of alerts as one notification body dated now.
// Sections without alerts are left out. The closing total sums value at risk
// over expiry alerts only.
func DigestMessage(alerts []Alert, now time.Time) string {
	var expiry, stock []Alert
	for _, a := range alerts {
		if a.Type == TypeExpiry {
			expiry = append(expiry, a)
		} else if a.Type.IsStock() {
			stock = append(stock, a)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *PharmaTrack Alert Digest*\n%s\n", FormatDate(now))

	if len(expiry) > 0 {
		fmt.Fprintf(&b, "\n⏰ *Expiry Alerts (%d)*\n", len(expiry))
		for _, a := range expiry {
			fmt.Fprintf(&b, "• %s - %s - %s\n", a.ProductName, digestDaysLabel(a), FormatNaira(valueAtRisk(a)))
		}
	}

	if len(stock) > 0 {
		fmt.Fprintf(&b, "\n📦 *Stock Alerts (%d)*\n", len(stock))
		for _, a := range stock {
			fmt.Fprintf(&b, "• %s - %s\n", a.ProductName, digestStockLabel(a))
		}
	}

	fmt.Fprintf(&b, "\n💰 Total Value at Risk: %s", FormatNaira(TotalValueAtRisk(alerts)))
	return b.String()
}

// DigestWhatsAppURL returns a wa.me link carrying DigestMessage for the given number
func DigestWhatsAppURL(alerts []Alert, now time.Time, phone string) string {
	return WhatsAppURL(phone, DigestMessage(alerts, now))
}

// TotalValueAtRisk sums value at risk over expiry alerts. Stock alerts do not
// contribute.
func TotalValueAtRisk(alerts []Alert) decimal.Decimal {
	total := decimal.Zero
	for _, a := range alerts {
		if a.Type == TypeExpiry {
			total = total.Add(valueAtRisk(a))
		}
	}
	return total
}

func digestDaysLabel(a Alert) string {
	days := derefInt(a.DaysUntilExpiry)
	if days <= 0 {
		return "EXPIRED"
	}
	return fmt.Sprintf("%dd left", days)
}

func digestStockLabel(a Alert) string {
	if a.Type == TypeOutOfStock {
		return "OUT OF STOCK"
	}
	return fmt.Sprintf("%d units", derefInt(a.CurrentStock))
}

func valueAtRisk(a Alert) decimal.Decimal {
	if a.ValueAtRisk == nil {
		return decimal.Zero
	}
	return *a.ValueAtRisk
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
