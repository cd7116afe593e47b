package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// EventRecorder persists audit entries, reporting false for duplicates
type EventRecorder interface {
	RecordOrderEvent(ctx context.Context, event *models.OrderEvent) (bool, error)
}

// AuditWorker consumes order events and appends them to the audit log
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	recorder     EventRecorder
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, recorder EventRecorder) *AuditWorker {
	w := &AuditWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		recorder:     recorder,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderPlaced(func(ctx context.Context, e *models.OrderPlacedEvent) error {
		return w.record(ctx, e.BaseEvent, e.OrderID, e.UserID, string(e.Status), e)
	})
	w.eventHandler.OnPaymentRecorded(func(ctx context.Context, e *models.PaymentRecordedEvent) error {
		return w.record(ctx, e.BaseEvent, e.OrderID, e.UserID, string(e.Status), e)
	})
	w.eventHandler.OnOrderCancelled(func(ctx context.Context, e *models.OrderCancelledEvent) error {
		return w.record(ctx, e.BaseEvent, e.OrderID, e.UserID, string(models.OrderStatusCancelled), e)
	})
	w.eventHandler.OnOrderStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		return w.record(ctx, e.BaseEvent, e.OrderID, e.UserID, string(e.ToStatus), e)
	})

	return w
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping order audit worker")
	return w.consumer.Close()
}

func (w *AuditWorker) record(ctx context.Context, base models.BaseEvent, orderID, userID int64, status string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", base.EventType, err)
	}

	occurredAt := base.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	recorded, err := w.recorder.RecordOrderEvent(ctx, &models.OrderEvent{
		EventID:    base.EventID,
		EventType:  base.EventType,
		OrderID:    orderID,
		UserID:     userID,
		Status:     status,
		Payload:    payload,
		OccurredAt: occurredAt.UTC(),
	})
	if err != nil {
		util.OrderEventsRecordedTotal.WithLabelValues(base.EventType, "error").Inc()
		return fmt.Errorf("failed to record %s for order %d: %w", base.EventType, orderID, err)
	}

	if !recorded {
		util.OrderEventsRecordedTotal.WithLabelValues(base.EventType, "duplicate").Inc()
		w.logger.Debug("Skipping duplicate event", zap.String("event_id", base.EventID))
		return nil
	}

	util.OrderEventsRecordedTotal.WithLabelValues(base.EventType, "recorded").Inc()
	w.logger.Info("Order event recorded",
		zap.String("event_id", base.EventID),
		zap.String("type", base.EventType),
		zap.Int64("order_id", orderID))
	return nil
}
