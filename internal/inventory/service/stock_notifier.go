package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/tenant"
	"github.com/shopspring/decimal"
)

// StockAlertNotifier raises immediate alerts when a stock movement turns a
// medication high priority
type StockAlertNotifier struct {
	inventory     InventoryStore
	pharmacies    PharmacyStore
	notifications NotificationStore
	events        AlertEvents
	now           Clock
	defaultPhone  string
	logger        *logger.Logger
}

// NewStockAlertNotifier creates a new stock alert notifier
func NewStockAlertNotifier(
	inventory InventoryStore,
	pharmacies PharmacyStore,
	notifications NotificationStore,
	events AlertEvents,
	now Clock,
	defaultPhone string,
	log *logger.Logger,
) *StockAlertNotifier {
	return &StockAlertNotifier{
		inventory:     inventory,
		pharmacies:    pharmacies,
		notifications: notifications,
		events:        events,
		now:           now,
		defaultPhone:  defaultPhone,
		logger:        log.WithComponent("stock-notifier"),
	}
}

// NotifyStockChange evaluates the medication in scope and records and
// publishes every alert that became high priority with this movement. It
// returns the number of alerts published.
//
// Each alert is sent at most once per scope per day: a redelivered event
// publishes only what an earlier attempt recorded but could not publish.
// Medications that no longer exist in the scope are ignored.
func (n *StockAlertNotifier) NotifyStockChange(ctx context.Context, scope repository.Scope, medicationID string, previousStock int) (int, error) {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	item, err := n.inventory.GetInventoryItem(ctx, scope, medicationID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	now := n.now()
	raised := raisedAlerts(*item, previousStock, now)
	if len(raised) == 0 {
		return 0, nil
	}

	phone, err := recipientFor(ctx, n.pharmacies, scope, n.defaultPhone)
	if err != nil {
		return 0, err
	}

	var branchID *string
	if scope.IsBranch() {
		id := scope.BranchID
		branchID = &id
	}

	published := 0
	for _, a := range raised {
		alertID := a.ID
		notification, err := n.notifications.LatestSince(ctx, repository.NotificationLookup{
			Kind:     repository.NotificationAlert,
			BranchID: branchID,
			AlertID:  &alertID,
			Since:    startOfDay(now),
		})
		if err != nil {
			return published, fmt.Errorf("find alert %s: %w", a.ID, err)
		}
		if notification != nil && notification.PublishedAt != nil {
			continue
		}

		if notification == nil {
			notification = &repository.Notification{
				PharmacyID:  pharmacyID,
				BranchID:    branchID,
				Kind:        repository.NotificationAlert,
				Title:       a.Title,
				Message:     alerts.SingleAlertMessage(a),
				AlertID:     &alertID,
				AlertCount:  1,
				HighCount:   1,
				ValueAtRisk: decimal.Zero,
			}
			if a.ValueAtRisk != nil {
				notification.ValueAtRisk = *a.ValueAtRisk
			}
			if phone != "" {
				link := alerts.SingleAlertWhatsAppURL(a, phone)
				notification.WhatsAppURL = &link
			}
			if err := n.notifications.Create(ctx, notification); err != nil {
				return published, fmt.Errorf("record alert %s: %w", a.ID, err)
			}
		}

		var link string
		if notification.WhatsAppURL != nil {
			link = *notification.WhatsAppURL
		}
		if err := n.events.PublishAlertGenerated(ctx, pharmacyID, scope.BranchID, a, link); err != nil {
			return published, err
		}
		if err := n.notifications.MarkPublished(ctx, notification.ID); err != nil {
			return published, fmt.Errorf("mark alert %s published: %w", a.ID, err)
		}
		published++
	}

	if published > 0 {
		n.logger.Info().
			Str("pharmacy_id", pharmacyID).
			Str("medication_id", medicationID).
			Int("alerts", published).
			Msg("stock change raised alerts")
	}

	return published, nil
}

// raisedAlerts compares the alerts at previousStock with the current ones
func raisedAlerts(item alerts.InventoryItem, previousStock int, now time.Time) []alerts.Alert {
	before := item
	before.CurrentStock = previousStock

	wasHigh := map[string]bool{}
	for _, a := range alerts.Generate([]alerts.InventoryItem{before}, now) {
		if a.Priority == alerts.PriorityHigh {
			wasHigh[string(a.Type)] = true
		}
	}

	var raised []alerts.Alert
	for _, a := range alerts.Generate([]alerts.InventoryItem{item}, now) {
		if a.Priority == alerts.PriorityHigh && !wasHigh[string(a.Type)] {
			raised = append(raised, a)
		}
	}
	return raised
}
