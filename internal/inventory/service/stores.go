package service

import (
	"context"
	"time"

	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
)

// Clock returns the current time in the zone whose calendar decides expiry days
type Clock func() time.Time

// InventoryStore supplies engine input for a scope
type InventoryStore interface {
	ListInventory(ctx context.Context, scope repository.Scope) ([]alerts.InventoryItem, error)
	GetInventoryItem(ctx context.Context, scope repository.Scope, medicationID string) (*alerts.InventoryItem, error)
}

// PharmacyStore reads pharmacies and branches
type PharmacyStore interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
	Current(ctx context.Context) (*repository.Pharmacy, error)
	GetBranch(ctx context.Context, branchID string) (*repository.Branch, error)
	ListActiveBranches(ctx context.Context) ([]repository.Branch, error)
}

// NotificationStore persists digest and alert notifications
type NotificationStore interface {
	Create(ctx context.Context, n *repository.Notification) error
	LatestSince(ctx context.Context, l repository.NotificationLookup) (*repository.Notification, error)
	MarkPublished(ctx context.Context, id string) error
	List(ctx context.Context, f repository.NotificationFilter) ([]repository.Notification, int64, error)
	MarkRead(ctx context.Context, id string) error
}

// AlertEvents is satisfied by events.AlertEventPublisher
type AlertEvents interface {
	PublishAlertGenerated(ctx context.Context, pharmacyID, branchID string, a alerts.Alert, whatsappURL string) error
	PublishDigest(ctx context.Context, n *repository.Notification, summary alerts.Summary) error
}

// startOfDay is midnight of t's calendar day in t's location
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
