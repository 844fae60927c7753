package models

import "time"

// Event types published to the order events topic.
const (
	EventTypeOrderCreated       = "order.created"
	EventTypeOrderPaid          = "order.paid"
	EventTypeOrderCancelled     = "order.cancelled"
	EventTypeOrderStatusChanged = "order.status_changed"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent is published after an order is persisted with its items
// and stock has been decremented.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Total       int64           `json:"total"`
	Items       []OrderItemData `json:"items"`
}

// OrderPaidEvent is published when the payment processor confirms payment.
type OrderPaidEvent struct {
	BaseEvent
	OrderID         string    `json:"order_id"`
	OrderNumber     string    `json:"order_number"`
	UserID          string    `json:"user_id"`
	Total           int64     `json:"total"`
	PaymentIntentID string    `json:"payment_intent_id"`
	PaidAt          time.Time `json:"paid_at"`
}

// OrderCancelledEvent is published when an order moves to CANCELLED.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderStatusChangedEvent is published on any status update, including
// admin-driven ones.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

// OrderItemData represents item data in events.
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}
