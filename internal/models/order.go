package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the state of the order simulator
type OrderStatus string

// Order statuses
const (
	OrderStatusIdle      OrderStatus = "IDLE"
	OrderStatusPlacing   OrderStatus = "PLACING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// OrderRecord is an immutable snapshot created at checkout
type OrderRecord struct {
	OrderNumber   string          `json:"order_number"`
	Items         []LineItem      `json:"items"`
	DeliveryDate  string          `json:"delivery_date"`
	OrderDate     time.Time       `json:"order_date"`
	PromoCode     string          `json:"promo_code,omitempty"`
	PromoDiscount decimal.Decimal `json:"promo_discount"`
	Summary       Summary         `json:"summary"`
}

// OrderStatusUpdate describes a simulator transition
type OrderStatusUpdate struct {
	SessionID string       `json:"session_id"`
	Status    OrderStatus  `json:"status"`
	Order     *OrderRecord `json:"order,omitempty"`
	Error     string       `json:"error,omitempty"`
	Retryable bool         `json:"retryable,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
