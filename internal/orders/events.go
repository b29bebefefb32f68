package orders

import (
	"context"
	"encoding/json"
	"time"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	EventTransactionCreated       = "TransactionCreated"
	EventTransactionStatusChanged = "TransactionStatusChanged"
	EventHandoffOrderCreated      = "HandoffOrderCreated"
	EventHandoffOrderUpdated      = "HandoffOrderUpdated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // reference id or order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type TransactionCreatedPayload struct {
	ReferenceID string        `json:"reference_id"`
	BuyerID     string        `json:"buyer_id,omitempty"`
	Method      PaymentMethod `json:"method"`
	Amount      string        `json:"amount"`
	Status      Status        `json:"status"`
}

type TransactionStatusChangedPayload struct {
	ReferenceID      string `json:"reference_id"`
	BuyerID          string `json:"buyer_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	From             Status `json:"from"`
	To               Status `json:"to"`
}

type HandoffOrderPayload struct {
	OrderID    string `json:"order_id"`
	BuyerID    string `json:"buyer_id"`
	MerchantID string `json:"merchant_id"`
	Status     Status `json:"status"`
	Subtotal   string `json:"subtotal"`
}

func NewEnvelope(eventType, producer, correlationID, traceID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
}

// EventSink receives domain events for the event log.
type EventSink interface {
	Emit(ctx context.Context, topic string, env Envelope) error
}

// BuyerNotifier pushes an event to whoever is watching a buyer's listing.
type BuyerNotifier interface {
	NotifyBuyer(ctx context.Context, buyerID string, env Envelope) error
}

// KafkaSink publishes envelopes through the async producer.
type KafkaSink struct {
	Producer *kafkax.Producer
}

func (s KafkaSink) Emit(ctx context.Context, topic string, env Envelope) error {
	return s.Producer.Publish(ctx, topic, PartitionKey(env.CorrelationID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// Discard drops every event. Used when a deployment runs without Kafka or
// without live subscribers.
type Discard struct{}

func (Discard) Emit(context.Context, string, Envelope) error { return nil }
func (Discard) NotifyBuyer(context.Context, string, Envelope) error { return nil }
