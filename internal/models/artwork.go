package models

import "github.com/shopspring/decimal"

// ArtworkRecord represents an artwork in the catalog
type ArtworkRecord struct {
	ID                 int64           `json:"id"`
	Title              string          `json:"title"`
	Artist             string          `json:"artist"`
	Image              string          `json:"image"`
	OriginalPrice      decimal.Decimal `json:"original_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	ReturnPeriod       int             `json:"return_period"`
	DeliveryDate       string          `json:"delivery_date"`
	Label              string          `json:"label,omitempty"`
	Meta               string          `json:"meta,omitempty"`
	Size               string          `json:"size,omitempty"`
	Medium             string          `json:"medium,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Discount returns the unrounded discount amount of the artwork
func (a ArtworkRecord) Discount() decimal.Decimal {
	return a.OriginalPrice.Mul(a.DiscountPercentage).Div(hundred)
}
