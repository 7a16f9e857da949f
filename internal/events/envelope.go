// Package events publishes and consumes order lifecycle events on Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MikeMC777/motodetail-shop/internal/order"
)

const (
	EventOrderPaid     = "OrderPaid"
	EventPaymentFailed = "PaymentFailed"

	TopicOrderPaid     = "order.paid"
	TopicPaymentFailed = "order.payment_failed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// OrderPaidPayload carries what the confirmation message needs.
type OrderPaidPayload struct {
	OrderID         int64          `json:"order_id"`
	PaymentMethod   string         `json:"payment_method"`
	Total           string         `json:"total"`
	Customer        order.Snapshot `json:"customer"`
	PaymentIntentID string         `json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	Items           []ItemLine     `json:"items,omitempty"`
}

type PaymentFailedPayload struct {
	OrderID       int64          `json:"order_id"`
	PaymentMethod string         `json:"payment_method"`
	Total         string         `json:"total"`
	Customer      order.Snapshot `json:"customer"`
	Reason        string         `json:"reason,omitempty"`
}

// PartitionKey keeps every event of one order on one partition.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }

func newEnvelope(eventType, producer string, orderID int64, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       MustMarshal(payload),
	}
}

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// UnwrapPayload decodes the payload of an envelope.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

func itemLines(items []order.Item) []ItemLine {
	out := make([]ItemLine, 0, len(items))
	for _, it := range items {
		out = append(out, ItemLine{Name: it.Name, Quantity: it.Quantity, Price: it.Price.StringFixed(2)})
	}
	return out
}
