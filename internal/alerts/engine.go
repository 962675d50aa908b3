package alerts

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Expiry windows in days. A window includes its upper bound.
const (
	expiryWeekDays  = 7
	expiryMonthDays = 30
	expiryWatchDays = 60
)

// Suggested discounts per expiry window, in percent
const (
	discountThisWeek  = 35
	discountThisMonth = 20
	discountWatch     = 10
)

// assumedDailyUsage is the fixed consumption rate behind EstimatedDaysUntilEmpty
const assumedDailyUsage = 2

// Generate evaluates every item and returns the resulting alerts ranked by
// priority. Items are evaluated in input order and alerts of equal priority
// keep that order.
func Generate(items []InventoryItem, now time.Time) []Alert {
	result := make([]Alert, 0, len(items))

	for _, item := range items {
		if alert, ok := expiryAlert(item, now); ok {
			result = append(result, alert)
		}
		if alert, ok := stockAlert(item); ok {
			result = append(result, alert)
		}
	}

	Rank(result)
	return result
}

// Rank sorts alerts in place: high before medium before low, stable.
func Rank(alerts []Alert) {
	slices.SortStableFunc(alerts, func(a, b Alert) int {
		return a.Priority.Rank() - b.Priority.Rank()
	})
}

// Summarize counts alerts by priority and class
func Summarize(alerts []Alert) Summary {
	s := Summary{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Priority {
		case PriorityHigh:
			s.High++
		case PriorityMedium:
			s.Medium++
		case PriorityLow:
			s.Low++
		}

		if a.Type == TypeExpiry {
			s.Expiry++
		} else if a.Type.IsStock() {
			s.LowStock++
		}
	}
	return s
}

// expiryAlert classifies an item by days left before expiry.
// Items without stock carry no value at risk and are skipped.
func expiryAlert(item InventoryItem, now time.Time) (Alert, bool) {
	if item.CurrentStock <= 0 {
		return Alert{}, false
	}

	days := DaysBetween(now, item.ExpiryDate)
	if days > expiryWatchDays {
		return Alert{}, false
	}

	valueAtRisk := item.EffectivePrice().Mul(decimal.NewFromInt(int64(item.CurrentStock)))
	expiry := item.ExpiryDate

	alert := Alert{
		ID:              "expiry-" + item.ID,
		Type:            TypeExpiry,
		ProductName:     item.Name,
		ProductID:       item.ID,
		ValueAtRisk:     &valueAtRisk,
		ExpiryDate:      &expiry,
		DaysUntilExpiry: intPtr(days),
		CurrentStock:    intPtr(item.CurrentStock),
	}

	value := FormatNaira(valueAtRisk)

	switch {
	case days <= 0:
		alert.Priority = PriorityHigh
		alert.Title = "Expired: " + item.Name
		alert.Message = fmt.Sprintf("%s expired %s. %d units worth %s must come off the shelves.",
			item.Name, expiredAgo(days), item.CurrentStock, value)
		alert.SuggestedAction = "Remove from shelves immediately and log for disposal"

	case days <= expiryWeekDays:
		alert.Priority = PriorityHigh
		alert.Title = "Expiring This Week: " + item.Name
		alert.Message = fmt.Sprintf("%s expires in %s with %s of stock at risk.",
			item.Name, pluralDays(days), value)
		alert.SuggestedDiscountPercent = intPtr(discountThisWeek)
		alert.SuggestedAction = "Apply a 30-40% discount immediately to clear stock"

	case days <= expiryMonthDays:
		alert.Priority = PriorityMedium
		alert.Title = "Expiring Soon: " + item.Name
		alert.Message = fmt.Sprintf("%s expires in %s with %s of stock at risk.",
			item.Name, pluralDays(days), value)
		alert.SuggestedDiscountPercent = intPtr(discountThisMonth)
		alert.SuggestedAction = "Apply a 20% discount to move stock before expiry"

	default:
		alert.Priority = PriorityLow
		alert.Title = "Expiry Watch: " + item.Name
		alert.Message = fmt.Sprintf("%s expires in %s. %s of stock on hand.",
			item.Name, pluralDays(days), value)
		alert.SuggestedDiscountPercent = intPtr(discountWatch)
		alert.SuggestedAction = "Monitor; consider a 10% discount if stock is high"
	}

	return alert, true
}

// stockAlert classifies an item by stock on hand against its reorder level
func stockAlert(item InventoryItem) (Alert, bool) {
	if item.CurrentStock > item.ReorderLevel {
		return Alert{}, false
	}

	alert := Alert{
		ID:           "stock-" + item.ID,
		ProductName:  item.Name,
		ProductID:    item.ID,
		CurrentStock: intPtr(item.CurrentStock),
	}

	if item.CurrentStock <= 0 {
		reorder := item.ReorderLevel * 3
		alert.Type = TypeOutOfStock
		alert.Priority = PriorityHigh
		alert.Title = "Out of Stock: " + item.Name
		alert.Message = fmt.Sprintf("%s is out of stock. Reorder %d units.", item.Name, reorder)
		alert.EstimatedDaysUntilEmpty = intPtr(0)
		alert.SuggestedReorderQuantity = intPtr(reorder)
		return alert, true
	}

	// CurrentStock > 0 here, so ReorderLevel > 0 as well.
	stockPercent := float64(item.CurrentStock) / float64(item.ReorderLevel) * 100
	daysLeft := (item.CurrentStock + assumedDailyUsage - 1) / assumedDailyUsage
	reorder := item.ReorderLevel * 2

	alert.Type = TypeLowStock
	switch {
	case stockPercent <= 25:
		alert.Priority = PriorityHigh
		alert.Title = "Critically Low Stock: " + item.Name
	case stockPercent <= 50:
		alert.Priority = PriorityMedium
		alert.Title = "Low Stock: " + item.Name
	default:
		alert.Priority = PriorityLow
		alert.Title = "Stock Running Low: " + item.Name
	}
	alert.Message = fmt.Sprintf("%s has %d units left (reorder level %d), about %s of supply. Reorder %d units.",
		item.Name, item.CurrentStock, item.ReorderLevel, pluralDays(daysLeft), reorder)
	alert.EstimatedDaysUntilEmpty = intPtr(daysLeft)
	alert.SuggestedReorderQuantity = intPtr(reorder)

	return alert, true
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func expiredAgo(days int) string {
	if days == 0 {
		return "today"
	}
	return pluralDays(-days) + " ago"
}
