package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/events"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/messaging"
	"github.com/pharmatrack/pharmatrack-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outOfStockAlert(t *testing.T) alerts.Alert {
	t.Helper()
	list := alerts.Generate([]alerts.InventoryItem{{
		ID:           "m1",
		Name:         "Insulin",
		CurrentStock: 0,
		ReorderLevel: 5,
		UnitCost:     decimal.NewFromInt(5000),
		ExpiryDate:   time.Now().AddDate(1, 0, 0),
	}}, time.Now())
	require.Len(t, list, 1)
	return list[0]
}

func TestPublishAlertGenerated(t *testing.T) {
	mock := testutil.NewMockPublisher()
	pub := events.NewAlertEventPublisher(mock, logger.Nop())

	a := outOfStockAlert(t)
	require.NoError(t, pub.PublishAlertGenerated(context.Background(), "p1", "b1", a, "https://wa.me/1?text=x"))

	published := mock.EventsOfType(messaging.EventAlertGenerated)
	require.Len(t, published, 1)

	var got messaging.AlertGeneratedEvent
	published[0].DecodePayload(t, &got)
	assert.Equal(t, "stock-m1", got.AlertID)
	assert.Equal(t, "out_of_stock", got.AlertType)
	assert.Equal(t, "high", got.Priority)
	assert.Equal(t, "b1", got.BranchID)
	assert.Equal(t, alerts.SingleAlertMessage(a), got.Text)

	msg := published[0].Message
	assert.Equal(t, "86400000", msg.Expiration)
	assert.Equal(t, "p1", msg.Headers["pharmacy_id"])
	assert.Equal(t, "b1", msg.Headers["branch_id"])
}

func TestPublishDigest(t *testing.T) {
	mock := testutil.NewMockPublisher()
	pub := events.NewAlertEventPublisher(mock, logger.Nop())

	branch := "b1"
	link := "https://wa.me/234?text=digest"
	n := &repository.Notification{
		ID:          "n1",
		PharmacyID:  "p1",
		BranchID:    &branch,
		Message:     "digest",
		WhatsAppURL: &link,
		ValueAtRisk: decimal.NewFromInt(3000),
	}
	require.NoError(t, pub.PublishDigest(context.Background(), n, alerts.Summary{Total: 3, High: 2}))

	var got messaging.AlertDigestEvent
	mock.EventsOfType(messaging.EventAlertDigest)[0].DecodePayload(t, &got)
	assert.Equal(t, messaging.AlertDigestEvent{
		PharmacyID:     "p1",
		BranchID:       "b1",
		NotificationID: "n1",
		AlertCount:     3,
		HighCount:      2,
		ValueAtRisk:    "3000.00",
		Text:           "digest",
		WhatsAppURL:    link,
	}, got)
}

func TestPublish_ErrorIsReturned(t *testing.T) {
	mock := testutil.NewMockPublisher()
	mock.Err = errors.New("channel closed")
	pub := events.NewAlertEventPublisher(mock, logger.Nop())

	err := pub.PublishAlertGenerated(context.Background(), "p1", "", outOfStockAlert(t), "")
	assert.ErrorContains(t, err, "channel closed")
}

func TestNilPublisherIsNoop(t *testing.T) {
	var pub *events.AlertEventPublisher
	assert.NoError(t, pub.PublishDigest(context.Background(), &repository.Notification{}, alerts.Summary{}))
}
