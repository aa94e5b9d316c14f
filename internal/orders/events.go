package orders

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
	EventOrderShipped   = "OrderShipped"
	EventOrderDelivered = "OrderDelivered"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g., "order-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	UserID     string     `json:"user_id"`
	Items      []LineItem `json:"items"`
	TotalCents int        `json:"total_cents"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

type OrderPaidPayload struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int    `json:"amount_cents"`
}

type OrderStatusPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Reason  string `json:"reason,omitempty"` // e.g., RESERVATION_EXPIRED
}

// Publisher receives lifecycle events after the owning transaction has committed.
// Delivery is best effort; the database stays the source of truth.
type Publisher interface {
	Publish(ctx context.Context, topic string, env Envelope)
}

// Cache keeps a read-through copy of orders. Implementations must tolerate being stale.
type Cache interface {
	GetOrder(ctx context.Context, orderID string) (*Order, bool)
	PutOrder(ctx context.Context, o *Order)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, Envelope) {}

type nopCache struct{}

func (nopCache) GetOrder(context.Context, string) (*Order, bool) { return nil, false }
func (nopCache) PutOrder(context.Context, *Order)                {}
