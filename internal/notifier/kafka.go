package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/amanuela97/golden-hive-settlement/internal/settlement"
)

const (
	TypeOrderConfirmation = "OrderConfirmationRequested"
	TypeInvoiceRequested  = "InvoiceRequested"
)

// Event is the envelope published for downstream consumers (mailer,
// invoicing). Keyed by order id so deliveries for one order stay ordered.
type Event struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type OrderConfirmationPayload struct {
	OrderID         string   `json:"order_id"`
	SiblingOrderIDs []string `json:"sibling_order_ids,omitempty"`
}

type InvoicePayload struct {
	OrderID string `json:"order_id"`
}

// Producer is satisfied by broker.KafkaProducer.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type KafkaNotifier struct {
	producer Producer
}

var _ settlement.Notifier = (*KafkaNotifier)(nil)

func NewKafkaNotifier(producer Producer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) OrderConfirmation(ctx context.Context, orderID string, siblingOrderIDs []string) error {
	return n.publish(ctx, orderID, TypeOrderConfirmation, OrderConfirmationPayload{
		OrderID:         orderID,
		SiblingOrderIDs: siblingOrderIDs,
	})
}

func (n *KafkaNotifier) InvoiceRequested(ctx context.Context, orderID string) error {
	return n.publish(ctx, orderID, TypeInvoiceRequested, InvoicePayload{OrderID: orderID})
}

func (n *KafkaNotifier) publish(ctx context.Context, key, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	value, err := json.Marshal(Event{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return n.producer.Publish(ctx, key, value)
}
