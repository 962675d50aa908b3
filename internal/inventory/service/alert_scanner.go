package service

import (
	"context"
	"fmt"

	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/tenant"
)

const digestTitle = "Daily alert digest"

// AlertScanner records at most one digest per scope per day and publishes it
// for delivery
type AlertScanner struct {
	inventory     InventoryStore
	pharmacies    PharmacyStore
	notifications NotificationStore
	events        AlertEvents
	now           Clock
	defaultPhone  string
	logger        *logger.Logger
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	inventory InventoryStore,
	pharmacies PharmacyStore,
	notifications NotificationStore,
	events AlertEvents,
	now Clock,
	defaultPhone string,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		inventory:     inventory,
		pharmacies:    pharmacies,
		notifications: notifications,
		events:        events,
		now:           now,
		defaultPhone:  defaultPhone,
		logger:        log.WithComponent("alert-scanner"),
	}
}

// ScanPharmacy scans the pharmacy-wide scope and every active branch of the
// pharmacy in ctx. It logs per-scope errors, keeps scanning and returns the
// last error together with the number of digests recorded.
func (s *AlertScanner) ScanPharmacy(ctx context.Context) (int, error) {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}
	log := s.logger.WithPharmacyID(pharmacyID)

	branches, err := s.pharmacies.ListActiveBranches(ctx)
	if err != nil {
		return 0, fmt.Errorf("list branches: %w", err)
	}

	scopes := []struct {
		scope repository.Scope
		title string
	}{{repository.Scope{}, digestTitle}}
	for _, b := range branches {
		scopes = append(scopes, struct {
			scope repository.Scope
			title string
		}{repository.Scope{BranchID: b.ID}, digestTitle + ": " + b.Name})
	}

	recorded := 0
	var lastErr error
	for _, sc := range scopes {
		ok, err := s.scanScope(ctx, pharmacyID, sc.scope, sc.title)
		if ok {
			recorded++
		}
		if err != nil {
			log.Error().Err(err).Str("branch_id", sc.scope.BranchID).Msg("digest scan failed")
			lastErr = err
		}
	}

	log.Info().Int("scopes", len(scopes)).Int("digests", recorded).Msg("digest scan completed")
	return recorded, lastErr
}

// scanScope reports whether a digest was recorded for scope. A digest
// recorded earlier today that never reached the broker is published again
// instead of recording a new one.
func (s *AlertScanner) scanScope(ctx context.Context, pharmacyID string, scope repository.Scope, title string) (bool, error) {
	now := s.now()

	var branchID *string
	if scope.IsBranch() {
		id := scope.BranchID
		branchID = &id
	}

	latest, err := s.notifications.LatestSince(ctx, repository.NotificationLookup{
		Kind:     repository.NotificationDigest,
		BranchID: branchID,
		Since:    startOfDay(now),
	})
	if err != nil {
		return false, err
	}
	if latest != nil {
		if latest.PublishedAt != nil {
			return false, nil
		}
		s.logger.Info().
			Str("pharmacy_id", pharmacyID).
			Str("notification_id", latest.ID).
			Msg("republishing undelivered digest")
		return false, s.publish(ctx, latest, alerts.Summary{Total: latest.AlertCount, High: latest.HighCount})
	}

	items, err := s.inventory.ListInventory(ctx, scope)
	if err != nil {
		return false, err
	}
	list := alerts.Generate(items, now)
	if len(list) == 0 {
		return false, nil
	}

	summary := alerts.Summarize(list)
	message := alerts.DigestMessage(list, now)
	n := &repository.Notification{
		PharmacyID:  pharmacyID,
		BranchID:    branchID,
		Kind:        repository.NotificationDigest,
		Title:       title,
		Message:     message,
		AlertCount:  summary.Total,
		HighCount:   summary.High,
		ValueAtRisk: alerts.TotalValueAtRisk(list),
	}

	phone, err := recipientFor(ctx, s.pharmacies, scope, s.defaultPhone)
	if err != nil {
		return false, err
	}
	if phone != "" {
		link := alerts.WhatsAppURL(phone, message)
		n.WhatsAppURL = &link
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		return false, fmt.Errorf("record digest: %w", err)
	}
	return true, s.publish(ctx, n, summary)
}

// publish sends the digest and marks it published. An unmarked digest is
// retried by the next scan of the day.
func (s *AlertScanner) publish(ctx context.Context, n *repository.Notification, summary alerts.Summary) error {
	if err := s.events.PublishDigest(ctx, n, summary); err != nil {
		return err
	}
	if err := s.notifications.MarkPublished(ctx, n.ID); err != nil {
		return fmt.Errorf("mark digest %s published: %w", n.ID, err)
	}
	return nil
}
