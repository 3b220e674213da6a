package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bag-service/internal/models"
	"bag-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing bag events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType, sessionID string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session-%s", sessionID)
}

// PublishOrderPlacing publishes OrderPlacing event
func (ep *EventPublisher) PublishOrderPlacing(ctx context.Context, sessionID string, summary models.Summary) error {
	event := &models.OrderPlacingEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderPlacing, sessionID),
		ItemCount:  summary.ItemCount,
		FinalTotal: summary.FinalTotal,
	}
	return ep.producer.PublishEvent(ctx, sessionKey(sessionID), event)
}

// PublishOrderConfirmed publishes OrderConfirmed event
func (ep *EventPublisher) PublishOrderConfirmed(ctx context.Context, sessionID string, record models.OrderRecord) error {
	ids := make([]int64, 0, len(record.Items))
	for _, item := range record.Items {
		ids = append(ids, item.Artwork.ID)
	}

	event := &models.OrderConfirmedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderConfirmed, sessionID),
		OrderNumber:   record.OrderNumber,
		ArtworkIDs:    ids,
		PromoCode:     record.PromoCode,
		PromoDiscount: record.PromoDiscount,
		FinalTotal:    record.Summary.FinalTotal,
		DeliveryDate:  record.DeliveryDate,
	}
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%s", record.OrderNumber), event)
}

// PublishOrderFailed publishes OrderFailed event
func (ep *EventPublisher) PublishOrderFailed(ctx context.Context, sessionID, reason string) error {
	event := &models.OrderFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderFailed, sessionID),
		Reason:    reason,
	}
	return ep.producer.PublishEvent(ctx, sessionKey(sessionID), event)
}

// PublishPromoApplied publishes PromoApplied event
func (ep *EventPublisher) PublishPromoApplied(ctx context.Context, sessionID string, result models.PromoResult) error {
	event := &models.PromoAppliedEvent{
		BaseEvent:      newBaseEvent(models.EventTypePromoApplied, sessionID),
		Code:           result.Code,
		DiscountAmount: result.DiscountAmount,
	}
	return ep.producer.PublishEvent(ctx, sessionKey(sessionID), event)
}

// NopPublisher drops every event; used when Kafka is disabled
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlacing(context.Context, string, models.Summary) error {
	return nil
}

func (NopPublisher) PublishOrderConfirmed(context.Context, string, models.OrderRecord) error {
	return nil
}

func (NopPublisher) PublishOrderFailed(context.Context, string, string) error {
	return nil
}

func (NopPublisher) PublishPromoApplied(context.Context, string, models.PromoResult) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderConfirmed func(context.Context, *models.OrderConfirmedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderConfirmed registers a handler for OrderConfirmed events
func (eh *EventHandler) OnOrderConfirmed(handler func(context.Context, *models.OrderConfirmedEvent) error) {
	eh.onOrderConfirmed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderConfirmed:
		if eh.onOrderConfirmed != nil {
			var event models.OrderConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderConfirmed event: %w", err)
			}
			return eh.onOrderConfirmed(ctx, &event)
		}

	case models.EventTypeOrderPlacing, models.EventTypeOrderFailed, models.EventTypePromoApplied:
		// informational

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
