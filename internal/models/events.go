package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlacing   = "ORDER_PLACING"
	EventTypeOrderConfirmed = "ORDER_CONFIRMED"
	EventTypeOrderFailed    = "ORDER_FAILED"
	EventTypePromoApplied   = "PROMO_APPLIED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacingEvent published when a placement starts
type OrderPlacingEvent struct {
	BaseEvent
	ItemCount  int             `json:"item_count"`
	FinalTotal decimal.Decimal `json:"final_total"`
}

// OrderConfirmedEvent published when an order record is persisted
type OrderConfirmedEvent struct {
	BaseEvent
	OrderNumber   string          `json:"order_number"`
	ArtworkIDs    []int64         `json:"artwork_ids"`
	PromoCode     string          `json:"promo_code,omitempty"`
	PromoDiscount decimal.Decimal `json:"promo_discount"`
	FinalTotal    decimal.Decimal `json:"final_total"`
	DeliveryDate  string          `json:"delivery_date"`
}

// OrderFailedEvent published when a placement could not be persisted
type OrderFailedEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

// PromoAppliedEvent published when a promo code is accepted
type PromoAppliedEvent struct {
	BaseEvent
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}
