package messaging

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestPublishOptions(t *testing.T) {
	var msg amqp.Publishing
	for _, opt := range []PublishOption{
		WithExpiration(24 * time.Hour),
		WithHeader("pharmacy_id", "p1"),
		WithHeader("branch_id", ""),
	} {
		opt(&msg)
	}

	assert.Equal(t, "86400000", msg.Expiration)
	assert.Equal(t, amqp.Table{"pharmacy_id": "p1"}, msg.Headers)
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, CorrelationID(context.Background()))
	assert.Equal(t, "c-1", CorrelationID(WithCorrelationID(context.Background(), "c-1")))
}
