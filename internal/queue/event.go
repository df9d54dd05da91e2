package queue

import (
	"fmt"
	"time"
)

// Order lifecycle event types published to Kafka.
const (
	EventOrderCreated     = "order_created"
	EventOrderConfirmed   = "order_confirmed"
	EventOrderCancelled   = "order_cancelled"
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
)

// OrderEvent is one order lifecycle event. EventID doubles as the idempotency
// key on the consuming side.
type OrderEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OrderID    uint      `json:"order_id"`
	OrderNo    string    `json:"order_no"`
	UserID     uint      `json:"user_id"`
	Amount     int64     `json:"amount"` // VND
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate does minimal field checks so consumers never process dirty events.
func (e OrderEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if e.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	if e.OrderNo == "" {
		return fmt.Errorf("order_no is required")
	}
	return nil
}
