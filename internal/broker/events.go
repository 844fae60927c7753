package broker

import (
	"context"
	"time"

	"commerce-api/internal/models"

	"github.com/google/uuid"
)

// Publisher is what services use to emit domain events; the Kafka producer
// satisfies it and tests substitute a recorder.
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher builds and publishes typed order lifecycle events.
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// PublishOrderCreated publishes an order.created event.
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		Items:       items,
	}
	return ep.producer.PublishEvent(ctx, order.ID, event)
}

// PublishOrderPaid publishes an order.paid event.
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, order *models.Order, intentID string, paidAt time.Time) error {
	event := &models.OrderPaidEvent{
		BaseEvent:       newBaseEvent(models.EventTypeOrderPaid),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Total:           order.Total,
		PaymentIntentID: intentID,
		PaidAt:          paidAt,
	}
	return ep.producer.PublishEvent(ctx, order.ID, event)
}

// PublishOrderCancelled publishes an order.cancelled event.
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, orderID, reason string) error {
	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   orderID,
		Reason:    reason,
	}
	return ep.producer.PublishEvent(ctx, orderID, event)
}

// PublishStatusChanged publishes an order.status_changed event.
func (ep *EventPublisher) PublishStatusChanged(ctx context.Context, orderID string, from, to models.Status) error {
	event := &models.OrderStatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   orderID,
		From:      from,
		To:        to,
	}
	return ep.producer.PublishEvent(ctx, orderID, event)
}
