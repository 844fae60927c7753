package worker

import (
	"context"
	"encoding/json"

	"commerce-api/internal/broker"
	"commerce-api/internal/models"
	"commerce-api/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// StatusTransitioner is the slice of the store the worker needs.
type StatusTransitioner interface {
	TransitionOrderStatus(ctx context.Context, orderID string, from, to models.Status) (bool, error)
}

// FulfillmentWorker advances paid orders into fulfillment. When an order.paid
// event arrives the order moves CONFIRMED -> PROCESSING, which is what the
// back office used to do by hand for every paid order.
type FulfillmentWorker struct {
	consumer *broker.Consumer
	store    StatusTransitioner
	logger   *zap.Logger
}

// NewFulfillmentWorker creates a new fulfillment worker.
func NewFulfillmentWorker(consumer *broker.Consumer, store StatusTransitioner) *FulfillmentWorker {
	return &FulfillmentWorker{
		consumer: consumer,
		store:    store,
		logger:   util.NamedLogger("fulfillment"),
	}
}

// Start consumes order events until the context is cancelled.
func (w *FulfillmentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting fulfillment worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker.
func (w *FulfillmentWorker) Stop() error {
	w.logger.Info("Stopping fulfillment worker")
	return w.consumer.Close()
}

func (w *FulfillmentWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		w.logger.Warn("Skipping malformed event", zap.Error(err))
		return nil
	}

	if base.EventType != models.EventTypeOrderPaid {
		return nil
	}

	var event models.OrderPaidEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		w.logger.Warn("Skipping malformed order.paid event", zap.Error(err))
		return nil
	}

	if !models.CanTransition(models.StatusConfirmed, models.StatusProcessing) {
		return nil
	}

	moved, err := w.store.TransitionOrderStatus(ctx, event.OrderID, models.StatusConfirmed, models.StatusProcessing)
	if err != nil {
		return err
	}
	if !moved {
		// Already advanced or cancelled in the meantime; redelivery-safe.
		return nil
	}

	util.OrderStatusChangesTotal.WithLabelValues(string(models.StatusProcessing)).Inc()
	w.logger.Info("Order moved to fulfillment", zap.String("order_id", event.OrderID))
	return nil
}
