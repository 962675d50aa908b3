package consumers

import (
	"context"
	"fmt"

	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/messaging"
	"github.com/pharmatrack/pharmatrack-backend/pkg/tenant"
)

// StockEventsQueue is the durable queue bound to inventory stock events
const StockEventsQueue = "alert-service.stock-events"

// StockChangeNotifier is satisfied by service.StockAlertNotifier
type StockChangeNotifier interface {
	NotifyStockChange(ctx context.Context, scope repository.Scope, medicationID string, previousStock int) (int, error)
}

// StockEventConsumer raises alerts as stock movements arrive
type StockEventConsumer struct {
	consumer *messaging.Consumer
	notifier StockChangeNotifier
	logger   *logger.Logger
}

// NewStockEventConsumer declares the queue, binds it to stock events and
// registers the handler
func NewStockEventConsumer(rmq *messaging.RabbitMQ, notifier StockChangeNotifier, log *logger.Logger) (*StockEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, StockEventsQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, "inventory.stock.#"); err != nil {
		return nil, err
	}

	c := NewStockEventHandler(notifier, log)
	c.consumer = consumer
	consumer.RegisterHandler(messaging.EventStockChanged, c.HandleStockChanged)

	return c, nil
}

// NewStockEventHandler returns a consumer without a broker binding, for
// handling events delivered by other means
func NewStockEventHandler(notifier StockChangeNotifier, log *logger.Logger) *StockEventConsumer {
	return &StockEventConsumer{
		notifier: notifier,
		logger:   log.WithComponent("stock-consumer"),
	}
}

// Start starts consuming messages
func (c *StockEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// HandleStockChanged evaluates the moved medication under its pharmacy
func (c *StockEventConsumer) HandleStockChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.StockChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	pharmacyID, err := tenant.ParseTenantID(data.PharmacyID)
	if err != nil {
		return fmt.Errorf("stock event %s: %w", event.ID, err)
	}
	if data.MedicationID == "" {
		return fmt.Errorf("stock event %s: missing medication_id", event.ID)
	}

	log := c.logger.WithPharmacyID(pharmacyID)
	if event.CorrelationID != "" {
		log = log.WithCorrelationID(event.CorrelationID)
	}

	log.Debug().
		Str("medication_id", data.MedicationID).
		Str("branch_id", data.BranchID).
		Int("previous_stock", data.PreviousStock).
		Int("new_stock", data.NewStock).
		Msg("received stock changed event")

	ctx = tenant.WithTenantID(ctx, pharmacyID)
	if event.CorrelationID != "" {
		ctx = messaging.WithCorrelationID(ctx, event.CorrelationID)
	}

	_, err = c.notifier.NotifyStockChange(ctx, repository.Scope{BranchID: data.BranchID}, data.MedicationID, data.PreviousStock)
	return err
}
