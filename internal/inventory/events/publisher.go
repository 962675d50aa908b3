package events

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/messaging"
)

// Publisher is satisfied by messaging.Publisher
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}, opts ...messaging.PublishOption) error
}

// alertTTL bounds how long an undelivered alert may wait in a queue; the next
// daily scan supersedes it
const alertTTL = 24 * time.Hour

func scopeOptions(pharmacyID, branchID string) []messaging.PublishOption {
	return []messaging.PublishOption{
		messaging.WithExpiration(alertTTL),
		messaging.WithHeader("pharmacy_id", pharmacyID),
		messaging.WithHeader("branch_id", branchID),
	}
}

// AlertEventPublisher publishes alert and digest events for the delivery worker
type AlertEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewAlertEventPublisher creates a new alert event publisher
func NewAlertEventPublisher(publisher Publisher, log *logger.Logger) *AlertEventPublisher {
	return &AlertEventPublisher{
		publisher: publisher,
		logger:    log.WithComponent("alert-events"),
	}
}

// NewRabbitAlertEventPublisher declares the inventory exchange and returns a
// publisher bound to it
func NewRabbitAlertEventPublisher(rmq *messaging.RabbitMQ, source string, log *logger.Logger) (*AlertEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, source, log)
	if err != nil {
		return nil, err
	}
	return NewAlertEventPublisher(publisher, log), nil
}

// PublishAlertGenerated publishes one alert with its rendered message
func (p *AlertEventPublisher) PublishAlertGenerated(ctx context.Context, pharmacyID, branchID string, a alerts.Alert, whatsappURL string) error {
	if p == nil {
		return nil
	}

	data := messaging.AlertGeneratedEvent{
		PharmacyID:  pharmacyID,
		BranchID:    branchID,
		AlertID:     a.ID,
		AlertType:   string(a.Type),
		Priority:    string(a.Priority),
		Title:       a.Title,
		Message:     a.Message,
		ProductID:   a.ProductID,
		ProductName: a.ProductName,
		Text:        alerts.SingleAlertMessage(a),
		WhatsAppURL: whatsappURL,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data, scopeOptions(pharmacyID, branchID)...); err != nil {
		p.logger.Error().Err(err).
			Str("pharmacy_id", pharmacyID).
			Str("alert_id", a.ID).
			Msg("failed to publish alert generated event")
		return fmt.Errorf("publish alert %s: %w", a.ID, err)
	}
	return nil
}

// PublishDigest publishes a recorded digest notification
func (p *AlertEventPublisher) PublishDigest(ctx context.Context, n *repository.Notification, summary alerts.Summary) error {
	if p == nil {
		return nil
	}

	data := messaging.AlertDigestEvent{
		PharmacyID:     n.PharmacyID,
		NotificationID: n.ID,
		AlertCount:     summary.Total,
		HighCount:      summary.High,
		ValueAtRisk:    n.ValueAtRisk.StringFixed(2),
		Text:           n.Message,
	}
	if n.BranchID != nil {
		data.BranchID = *n.BranchID
	}
	if n.WhatsAppURL != nil {
		data.WhatsAppURL = *n.WhatsAppURL
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertDigest, data, scopeOptions(data.PharmacyID, data.BranchID)...); err != nil {
		p.logger.Error().Err(err).
			Str("pharmacy_id", n.PharmacyID).
			Str("notification_id", n.ID).
			Msg("failed to publish digest event")
		return fmt.Errorf("publish digest %s: %w", n.ID, err)
	}
	return nil
}
