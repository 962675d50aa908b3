package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// EventStockChanged is published by the POS/inventory service after a sale,
	// receipt or adjustment changes a medication's stock
	EventStockChanged = "inventory.stock.changed"

	// EventAlertGenerated carries one high-priority alert for the delivery worker
	EventAlertGenerated = "inventory.alert.generated"

	// EventAlertDigest carries the daily digest of one pharmacy or branch scope
	EventAlertDigest = "inventory.alert.digest"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeDeadLetter      = "pharmatrack.dlx"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// StockChangedEvent is consumed to re-evaluate a medication after its stock moved.
// BranchID is empty for pharmacy-wide stock.
type StockChangedEvent struct {
	PharmacyID    string `json:"pharmacy_id"`
	BranchID      string `json:"branch_id,omitempty"`
	MedicationID  string `json:"medication_id"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
	Reason        string `json:"reason,omitempty"`
}

// AlertGeneratedEvent is published for each high-priority alert raised by a stock change
type AlertGeneratedEvent struct {
	PharmacyID  string `json:"pharmacy_id"`
	BranchID    string `json:"branch_id,omitempty"`
	AlertID     string `json:"alert_id"`
	AlertType   string `json:"alert_type"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Text        string `json:"text"`
	WhatsAppURL string `json:"whatsapp_url,omitempty"`
}

// AlertDigestEvent is published once per scope per day
type AlertDigestEvent struct {
	PharmacyID     string `json:"pharmacy_id"`
	BranchID       string `json:"branch_id,omitempty"`
	NotificationID string `json:"notification_id"`
	AlertCount     int    `json:"alert_count"`
	HighCount      int    `json:"high_count"`
	ValueAtRisk    string `json:"value_at_risk"`
	Text           string `json:"text"`
	WhatsAppURL    string `json:"whatsapp_url,omitempty"`
}
