package worker

import (
	"context"
	"fmt"

	"bag-service/internal/broker"
	"bag-service/internal/models"
	"bag-service/internal/store"
	"bag-service/internal/util"

	"go.uber.org/zap"
)

// Receipt is the stored acknowledgement of a confirmed order
type Receipt struct {
	EventID      string  `json:"event_id"`
	SessionID    string  `json:"session_id"`
	OrderNumber  string  `json:"order_number"`
	ArtworkIDs   []int64 `json:"artwork_ids"`
	FinalTotal   string  `json:"final_total"`
	DeliveryDate string  `json:"delivery_date"`
}

// ReceiptWorker consumes OrderConfirmed events and records one receipt per event
type ReceiptWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	storage      store.Storage
	logger       *zap.Logger
}

// NewReceiptWorker creates a new receipt worker; receipts are written to storage
func NewReceiptWorker(consumer *broker.Consumer, storage store.Storage) *ReceiptWorker {
	w := &ReceiptWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		storage:      storage,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnOrderConfirmed(w.HandleOrderConfirmed)
	return w
}

// Start starts the worker
func (w *ReceiptWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting receipt worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReceiptWorker) Stop() error {
	w.logger.Info("Stopping receipt worker")
	return w.consumer.Close()
}

func receiptKey(eventID string) string {
	return fmt.Sprintf("receipt:%s", eventID)
}

// HandleOrderConfirmed stores a receipt. Redelivered events are skipped.
func (w *ReceiptWorker) HandleOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	ctx, span := util.StartSessionSpan(ctx, "ReceiptWorker.HandleOrderConfirmed", event.SessionID)
	defer span.End()

	var existing Receipt
	processed, err := store.GetJSON(ctx, w.storage, receiptKey(event.EventID), &existing)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	receipt := Receipt{
		EventID:      event.EventID,
		SessionID:    event.SessionID,
		OrderNumber:  event.OrderNumber,
		ArtworkIDs:   event.ArtworkIDs,
		FinalTotal:   event.FinalTotal.String(),
		DeliveryDate: event.DeliveryDate,
	}
	if err := store.PutJSON(ctx, w.storage, receiptKey(event.EventID), receipt); err != nil {
		util.StorageErrorsTotal.WithLabelValues("receipt").Inc()
		util.RecordError(span, err)
		return fmt.Errorf("failed to store receipt: %w", err)
	}

	util.OrderReceiptsTotal.Inc()
	w.logger.Info("Order receipt recorded",
		zap.String("order_number", event.OrderNumber),
		zap.String("session_id", event.SessionID),
		zap.Int("items", len(event.ArtworkIDs)),
		zap.String("final_total", receipt.FinalTotal))
	return nil
}

// Receipt returns the stored receipt for eventID
func (w *ReceiptWorker) Receipt(ctx context.Context, eventID string) (Receipt, bool, error) {
	var r Receipt
	found, err := store.GetJSON(ctx, w.storage, receiptKey(eventID), &r)
	return r, found, err
}
