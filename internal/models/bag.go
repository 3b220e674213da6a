package models

import "github.com/shopspring/decimal"

// LineItem is a catalog record resolved against one cart entry
type LineItem struct {
	Artwork   ArtworkRecord   `json:"artwork"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Summary holds the price details of a bag
type Summary struct {
	ItemCount      int             `json:"item_count"`
	TotalOriginal  decimal.Decimal `json:"total_original"`
	TotalDiscount  decimal.Decimal `json:"total_discount"`
	ConvenienceFee decimal.Decimal `json:"convenience_fee"`
	PromoDiscount  decimal.Decimal `json:"promo_discount"`
	FinalTotal     decimal.Decimal `json:"final_total"`
	Currency       string          `json:"currency"`
}

// PromoState is the promo currently active on a bag
type PromoState struct {
	Code           string          `json:"code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Active reports whether a promo code is applied
func (p PromoState) Active() bool {
	return p.Code != ""
}

// PromoResult is the outcome of applying a promo code
type PromoResult struct {
	OK             bool            `json:"ok"`
	Code           string          `json:"code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Message        string          `json:"message"`
}

// State returns the promo state the result leaves behind
func (r PromoResult) State() PromoState {
	return PromoState{Code: r.Code, DiscountAmount: r.DiscountAmount}
}
