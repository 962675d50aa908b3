// Package alerts turns an inventory snapshot into ranked expiry and stock
// alerts, and renders those alerts as plain-text notifications.
//
// Everything in this package is a pure function of its arguments: callers
// pass the snapshot and the current time explicitly and get a fresh result on
// every call.
package alerts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type is the kind of condition an alert reports
type Type string

const (
	TypeExpiry     Type = "expiry"
	TypeLowStock   Type = "low_stock"
	TypeOutOfStock Type = "out_of_stock"
)

// IsStock reports whether the type belongs to the stock class
func (t Type) IsStock() bool {
	return t == TypeLowStock || t == TypeOutOfStock
}

// Priority orders alerts for display and notification
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the sort position of the priority. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// InventoryItem is one row of the snapshot the engine evaluates.
// CurrentStock and ReorderLevel are pharmacy-wide or branch-scoped depending
// on where the snapshot came from.
type InventoryItem struct {
	ID           string           `db:"id" json:"id"`
	Name         string           `db:"name" json:"name"`
	CurrentStock int              `db:"current_stock" json:"current_stock"`
	ReorderLevel int              `db:"reorder_level" json:"reorder_level"`
	UnitCost     decimal.Decimal  `db:"unit_cost" json:"unit_cost"`
	SellingPrice *decimal.Decimal `db:"selling_price" json:"selling_price,omitempty"`
	ExpiryDate   time.Time        `db:"expiry_date" json:"expiry_date"`
}

// EffectivePrice is the selling price, or the unit cost when no selling price is set
func (i InventoryItem) EffectivePrice() decimal.Decimal {
	if i.SellingPrice != nil {
		return *i.SellingPrice
	}
	return i.UnitCost
}

// Alert is a single actionable finding about one inventory item
type Alert struct {
	ID          string   `json:"id"`
	Type        Type     `json:"type"`
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	ProductName string   `json:"product_name"`
	ProductID   string   `json:"product_id"`

	// Expiry class
	ValueAtRisk              *decimal.Decimal `json:"value_at_risk,omitempty"`
	ExpiryDate               *time.Time       `json:"expiry_date,omitempty"`
	DaysUntilExpiry          *int             `json:"days_until_expiry,omitempty"`
	SuggestedDiscountPercent *int             `json:"suggested_discount_percent,omitempty"`
	SuggestedAction          string           `json:"suggested_action,omitempty"`

	// Stock class
	CurrentStock             *int `json:"current_stock,omitempty"`
	EstimatedDaysUntilEmpty  *int `json:"estimated_days_until_empty,omitempty"`
	SuggestedReorderQuantity *int `json:"suggested_reorder_quantity,omitempty"`
}

// Summary holds aggregate counts over a list of alerts
type Summary struct {
	Total    int `json:"total"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Expiry   int `json:"expiry"`
	LowStock int `json:"low_stock"`
}

func intPtr(v int) *int {
	return &v
}
