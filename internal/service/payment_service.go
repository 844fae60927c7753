package service

import (
	"context"
	"fmt"
	"time"

	"commerce-api/internal/apperr"
	"commerce-api/internal/broker"
	"commerce-api/internal/models"
	"commerce-api/internal/payments"
	"commerce-api/internal/util"

	"go.uber.org/zap"
)

// PaymentStore is the persistence surface the payment flow needs.
type PaymentStore interface {
	GetPendingOrderForUser(ctx context.Context, orderID, userID string) (*models.Order, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	SetPaymentIntent(ctx context.Context, orderID, intentID string) error
	MarkOrderPaid(ctx context.Context, orderID string) (bool, error)
	TransitionOrderStatus(ctx context.Context, orderID string, from, to models.Status) (bool, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// EventCache is the fast-path de-duplication layer in front of the durable
// processed_events ledger. May be nil (Redis down at startup).
type EventCache interface {
	WasEventSeen(ctx context.Context, eventID string) (bool, error)
	MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// eventMarkTTL bounds how long fast-path de-dup marks live. Stripe retries
// for up to three days.
const eventMarkTTL = 72 * time.Hour

// PaymentService creates payment intents and reconciles webhook callbacks.
type PaymentService struct {
	store     PaymentStore
	gateway   payments.Gateway
	cache     EventCache
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(store PaymentStore, gateway payments.Gateway, cache EventCache, publisher *broker.EventPublisher) *PaymentService {
	return &PaymentService{
		store:     store,
		gateway:   gateway,
		cache:     cache,
		publisher: publisher,
		logger:    util.NamedLogger("payments"),
	}
}

// CreateIntentResponse is returned to the client, which completes the charge
// with the processor's client library.
type CreateIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          int64  `json:"amount"`
}

// CreateIntent creates a payment intent for a pending order owned by the
// caller. Orders already confirmed or cancelled are reported as not found,
// which also prevents paying the same order twice.
func (ps *PaymentService) CreateIntent(ctx context.Context, orderID, userID string) (*CreateIntentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateIntent")
	defer span.End()

	order, err := ps.store.GetPendingOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.OrderNotPayable()
	}

	// COP totals are whole pesos; the processor wants minor units.
	amount := order.Total * 100

	intent, err := ps.gateway.CreateIntent(ctx, amount, map[string]string{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"userId":      order.UserID,
	})
	if err != nil {
		util.PaymentIntentsFailedTotal.Inc()
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if err := ps.store.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return nil, fmt.Errorf("failed to store payment intent reference: %w", err)
	}

	util.PaymentIntentsCreatedTotal.Inc()
	ps.logger.Info("Payment intent created",
		zap.String("order_id", order.ID),
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", amount))

	return &CreateIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          order.Total,
	}, nil
}

// WebhookAck is returned to the processor on any accepted delivery.
type WebhookAck struct {
	Received bool `json:"received"`
}

// HandleWebhook verifies the raw payload signature and applies the payment
// outcome to the order. Unknown event types and redeliveries are acked as
// no-ops so the processor stops retrying.
func (ps *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookAck, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	event, err := ps.gateway.VerifyEvent(payload, signatureHeader)
	if err != nil {
		util.WebhookSignatureFailures.Inc()
		ps.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return nil, apperr.InvalidSignature()
	}

	switch event.Type {
	case payments.EventPaymentSucceeded, payments.EventPaymentFailed:
	default:
		util.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return &WebhookAck{Received: true}, nil
	}

	duplicate, err := ps.isDuplicate(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		ps.logger.Info("Webhook event already processed", zap.String("event_id", event.ID))
		util.WebhookEventsTotal.WithLabelValues(event.Type, "duplicate").Inc()
		return &WebhookAck{Received: true}, nil
	}

	orderID := event.Metadata["orderId"]
	if orderID == "" {
		// Intent without our metadata; nothing to reconcile.
		util.WebhookEventsTotal.WithLabelValues(event.Type, "no_order").Inc()
		return &WebhookAck{Received: true}, nil
	}

	switch event.Type {
	case payments.EventPaymentSucceeded:
		err = ps.confirmOrder(ctx, orderID, event.IntentID)
	case payments.EventPaymentFailed:
		err = ps.cancelOrder(ctx, orderID)
	}
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues(event.Type, "error").Inc()
		return nil, err
	}

	if err := ps.store.MarkEventProcessed(ctx, event.ID, event.Type); err != nil {
		ps.logger.Error("Failed to record processed event", zap.Error(err))
	}
	if ps.cache != nil {
		if _, err := ps.cache.MarkEventSeen(ctx, event.ID, eventMarkTTL); err != nil {
			ps.logger.Warn("Failed to mark event in cache", zap.Error(err))
		}
	}

	util.WebhookEventsTotal.WithLabelValues(event.Type, "ok").Inc()
	return &WebhookAck{Received: true}, nil
}

// isDuplicate consults the Redis fast path first, then the durable ledger.
func (ps *PaymentService) isDuplicate(ctx context.Context, eventID string) (bool, error) {
	if ps.cache != nil {
		seen, err := ps.cache.WasEventSeen(ctx, eventID)
		if err != nil {
			ps.logger.Warn("Event cache lookup failed, falling back to database", zap.Error(err))
		} else if seen {
			return true, nil
		}
	}

	processed, err := ps.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to check processed events: %w", err)
	}
	return processed, nil
}

func (ps *PaymentService) confirmOrder(ctx context.Context, orderID, intentID string) error {
	confirmed, err := ps.store.MarkOrderPaid(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to confirm order: %w", err)
	}
	if !confirmed {
		// Already confirmed or moved on; paid_at stays as first stamped.
		ps.logger.Info("Order not in PENDING, skipping confirmation",
			zap.String("order_id", orderID))
		return nil
	}

	util.OrdersConfirmedTotal.Inc()
	ps.logger.Info("Order confirmed by payment",
		zap.String("order_id", orderID),
		zap.String("intent_id", intentID))

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil || order == nil {
		ps.logger.Error("Failed to reload confirmed order", zap.Error(err))
		return nil
	}

	paidAt := time.Now()
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}
	if err := ps.publisher.PublishOrderPaid(ctx, order, intentID, paidAt); err != nil {
		ps.logger.Error("Failed to publish order.paid event", zap.Error(err))
	}
	return nil
}

func (ps *PaymentService) cancelOrder(ctx context.Context, orderID string) error {
	cancelled, err := ps.store.TransitionOrderStatus(ctx, orderID, models.StatusPending, models.StatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if !cancelled {
		ps.logger.Info("Order not in PENDING, skipping cancellation",
			zap.String("order_id", orderID))
		return nil
	}

	util.OrdersCancelledTotal.Inc()
	ps.logger.Warn("Order cancelled after failed payment", zap.String("order_id", orderID))

	if err := ps.publisher.PublishOrderCancelled(ctx, orderID, "payment_failed"); err != nil {
		ps.logger.Error("Failed to publish order.cancelled event", zap.Error(err))
	}
	return nil
}
