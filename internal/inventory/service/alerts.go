package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Alert ID prefixes produced by the engine
const (
	expiryAlertPrefix = "expiry-"
	stockAlertPrefix  = "stock-"
)

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	Type     alerts.Type
	Priority alerts.Priority
}

func (f AlertFilter) matches(a alerts.Alert) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Priority != "" && a.Priority != f.Priority {
		return false
	}
	return true
}

// Digest is the rendered digest for one scope
type Digest struct {
	GeneratedAt      time.Time       `json:"generated_at"`
	Alerts           []alerts.Alert  `json:"alerts"`
	Summary          alerts.Summary  `json:"summary"`
	TotalValueAtRisk decimal.Decimal `json:"total_value_at_risk"`
	Message          string          `json:"message"`
}

// AlertService computes alerts on demand. Nothing is cached: every call reads
// a fresh snapshot and evaluates it against the clock.
type AlertService struct {
	inventory    InventoryStore
	pharmacies   PharmacyStore
	now          Clock
	defaultPhone string
	logger       *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(inventory InventoryStore, pharmacies PharmacyStore, now Clock, defaultPhone string, log *logger.Logger) *AlertService {
	if now == nil {
		now = time.Now
	}
	return &AlertService{
		inventory:    inventory,
		pharmacies:   pharmacies,
		now:          now,
		defaultPhone: defaultPhone,
		logger:       log.WithComponent("alert-service"),
	}
}

// ListAlerts returns the ranked alerts matching filter and the summary of
// every alert in the scope
func (s *AlertService) ListAlerts(ctx context.Context, scope repository.Scope, filter AlertFilter) ([]alerts.Alert, alerts.Summary, error) {
	all, err := s.evaluate(ctx, scope)
	if err != nil {
		return nil, alerts.Summary{}, err
	}

	filtered := make([]alerts.Alert, 0, len(all))
	for _, a := range all {
		if filter.matches(a) {
			filtered = append(filtered, a)
		}
	}

	return filtered, alerts.Summarize(all), nil
}

// Summary returns the aggregate counts for the scope
func (s *AlertService) Summary(ctx context.Context, scope repository.Scope) (alerts.Summary, error) {
	all, err := s.evaluate(ctx, scope)
	if err != nil {
		return alerts.Summary{}, err
	}
	return alerts.Summarize(all), nil
}

// GetAlert recomputes a single alert by its ID
func (s *AlertService) GetAlert(ctx context.Context, scope repository.Scope, alertID string) (*alerts.Alert, error) {
	medicationID, stockClass, ok := parseAlertID(alertID)
	if !ok {
		return nil, errors.NotFound("alert")
	}
	if err := s.checkScope(ctx, scope); err != nil {
		return nil, err
	}

	item, err := s.inventory.GetInventoryItem(ctx, scope, medicationID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NotFound("alert")
		}
		return nil, err
	}

	for _, a := range alerts.Generate([]alerts.InventoryItem{*item}, s.now()) {
		if a.ID == alertID && a.Type.IsStock() == stockClass {
			return &a, nil
		}
	}
	return nil, errors.NotFound("alert")
}

// AlertWhatsAppLink renders the alert as a wa.me link for phone, falling back
// to the configured recipients when phone is empty
func (s *AlertService) AlertWhatsAppLink(ctx context.Context, scope repository.Scope, alertID, phone string) (string, error) {
	a, err := s.GetAlert(ctx, scope, alertID)
	if err != nil {
		return "", err
	}
	recipient, err := s.resolvePhone(ctx, scope, phone)
	if err != nil {
		return "", err
	}
	return alerts.SingleAlertWhatsAppURL(*a, recipient), nil
}

// Digest renders the digest for the scope
func (s *AlertService) Digest(ctx context.Context, scope repository.Scope) (*Digest, error) {
	now := s.now()
	all, err := s.evaluateAt(ctx, scope, now)
	if err != nil {
		return nil, err
	}
	return &Digest{
		GeneratedAt:      now,
		Alerts:           all,
		Summary:          alerts.Summarize(all),
		TotalValueAtRisk: alerts.TotalValueAtRisk(all),
		Message:          alerts.DigestMessage(all, now),
	}, nil
}

// DigestWhatsAppLink renders the digest as a wa.me link
func (s *AlertService) DigestWhatsAppLink(ctx context.Context, scope repository.Scope, phone string) (string, error) {
	recipient, err := s.resolvePhone(ctx, scope, phone)
	if err != nil {
		return "", err
	}
	d, err := s.Digest(ctx, scope)
	if err != nil {
		return "", err
	}
	return alerts.WhatsAppURL(recipient, d.Message), nil
}

func (s *AlertService) evaluate(ctx context.Context, scope repository.Scope) ([]alerts.Alert, error) {
	return s.evaluateAt(ctx, scope, s.now())
}

func (s *AlertService) evaluateAt(ctx context.Context, scope repository.Scope, now time.Time) ([]alerts.Alert, error) {
	if err := s.checkScope(ctx, scope); err != nil {
		return nil, err
	}
	items, err := s.inventory.ListInventory(ctx, scope)
	if err != nil {
		return nil, err
	}
	return alerts.Generate(items, now), nil
}

// checkScope rejects branches that do not belong to the current pharmacy
func (s *AlertService) checkScope(ctx context.Context, scope repository.Scope) error {
	if !scope.IsBranch() {
		return nil
	}
	_, err := s.pharmacies.GetBranch(ctx, scope.BranchID)
	return err
}

// resolvePhone picks the first number with digits from: the request, the
// branch, the pharmacy, the configured default
func (s *AlertService) resolvePhone(ctx context.Context, scope repository.Scope, requested string) (string, error) {
	if alerts.NormalizePhone(requested) != "" {
		return requested, nil
	}
	phone, err := recipientFor(ctx, s.pharmacies, scope, s.defaultPhone)
	if err != nil {
		return "", err
	}
	if phone == "" {
		return "", errors.NoRecipient()
	}
	return phone, nil
}

// recipientFor returns the stored alert phone for the scope, or fallback
func recipientFor(ctx context.Context, pharmacies PharmacyStore, scope repository.Scope, fallback string) (string, error) {
	if scope.IsBranch() {
		branch, err := pharmacies.GetBranch(ctx, scope.BranchID)
		if err != nil {
			return "", err
		}
		if branch.AlertPhone != nil && alerts.NormalizePhone(*branch.AlertPhone) != "" {
			return *branch.AlertPhone, nil
		}
	}

	pharmacy, err := pharmacies.Current(ctx)
	if err != nil {
		return "", err
	}
	if pharmacy.AlertPhone != nil && alerts.NormalizePhone(*pharmacy.AlertPhone) != "" {
		return *pharmacy.AlertPhone, nil
	}

	if alerts.NormalizePhone(fallback) != "" {
		return fallback, nil
	}
	return "", nil
}

// parseAlertID splits "expiry-<id>" and "stock-<id>". Medication IDs are
// UUIDs; anything else names no alert.
func parseAlertID(alertID string) (medicationID string, stockClass bool, ok bool) {
	switch {
	case strings.HasPrefix(alertID, expiryAlertPrefix):
		medicationID = strings.TrimPrefix(alertID, expiryAlertPrefix)
	case strings.HasPrefix(alertID, stockAlertPrefix):
		medicationID, stockClass = strings.TrimPrefix(alertID, stockAlertPrefix), true
	default:
		return "", false, false
	}
	if _, err := uuid.Parse(medicationID); err != nil {
		return "", false, false
	}
	return medicationID, stockClass, true
}
