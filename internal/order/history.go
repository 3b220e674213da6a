package order

import (
	"context"
	"fmt"

	"bag-service/internal/models"
	"bag-service/internal/store"
	"bag-service/internal/util"

	"go.uber.org/zap"
)

// HistoryKey is the key order records are persisted under
const HistoryKey = "orders"

// History is the append-only list of placed orders
type History struct {
	storage store.Storage
	logger  *zap.Logger
}

// NewHistory creates an order history over storage
func NewHistory(storage store.Storage) *History {
	return &History{
		storage: storage,
		logger:  util.GetLogger(),
	}
}

// List returns all records, oldest first
func (h *History) List(ctx context.Context) ([]models.OrderRecord, error) {
	records := []models.OrderRecord{}
	if _, err := store.GetJSON(ctx, h.storage, HistoryKey, &records); err != nil {
		util.StorageErrorsTotal.WithLabelValues("orders_load").Inc()
		return nil, models.NewStorageError(fmt.Errorf("failed to load orders: %w", err))
	}
	if records == nil {
		records = []models.OrderRecord{}
	}
	return records, nil
}

// Append adds record to the end of the history
func (h *History) Append(ctx context.Context, record models.OrderRecord) error {
	records, err := h.List(ctx)
	if err != nil {
		return err
	}

	records = append(records, record)
	if err := store.PutJSON(ctx, h.storage, HistoryKey, records); err != nil {
		util.StorageErrorsTotal.WithLabelValues("orders_append").Inc()
		h.logger.Error("Failed to persist order",
			zap.String("order_number", record.OrderNumber),
			zap.Error(err))
		return models.NewStorageError(fmt.Errorf("failed to persist order: %w", err))
	}
	return nil
}

// Find returns the most recent record with orderNumber
func (h *History) Find(ctx context.Context, orderNumber string) (models.OrderRecord, error) {
	records, err := h.List(ctx)
	if err != nil {
		return models.OrderRecord{}, err
	}

	for i := len(records) - 1; i >= 0; i-- {
		if records[i].OrderNumber == orderNumber {
			return records[i], nil
		}
	}
	return models.OrderRecord{}, models.ErrOrderNotFound
}
