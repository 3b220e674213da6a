// Package bag derives line items and price summaries from a bag's artwork ids.
//
// Unit prices are rounded per item for display while the aggregate discount
// is summed unrounded, so the sum of displayed unit prices may differ from
// total_original - total_discount by a fraction.
package bag

import (
	"bag-service/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultConvenienceFee is charged on every non-empty bag
var DefaultConvenienceFee = decimal.NewFromInt(78)

var half = decimal.NewFromFloat(0.5)

// Resolver looks artworks up by id
type Resolver interface {
	Find(id int64) (models.ArtworkRecord, bool)
}

// RoundHalfUp rounds to the nearest integer, halves toward positive infinity
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

// UnitPrice returns the rounded display price of an artwork
func UnitPrice(art models.ArtworkRecord) decimal.Decimal {
	return RoundHalfUp(art.OriginalPrice.Sub(art.Discount()))
}

// LoadLineItems resolves ids in insertion order. Ids missing from the
// catalog produce no line item, so the result may be shorter than ids.
func LoadLineItems(ids []int64, catalog Resolver) []models.LineItem {
	items := make([]models.LineItem, 0, len(ids))
	for _, id := range ids {
		art, ok := catalog.Find(id)
		if !ok {
			continue
		}
		items = append(items, models.LineItem{
			Artwork:   art,
			UnitPrice: UnitPrice(art),
		})
	}
	return items
}

// ComputeSummary returns the price details of items. It is a pure function of its inputs.
func ComputeSummary(items []models.LineItem, promoDiscount, convenienceFee decimal.Decimal) models.Summary {
	totalOriginal := decimal.Zero
	totalDiscount := decimal.Zero

	for _, item := range items {
		totalOriginal = totalOriginal.Add(item.Artwork.OriginalPrice)
		totalDiscount = totalDiscount.Add(item.Artwork.Discount())
	}

	fee := decimal.Zero
	if len(items) > 0 {
		fee = convenienceFee
	}

	return models.Summary{
		ItemCount:      len(items),
		TotalOriginal:  totalOriginal,
		TotalDiscount:  totalDiscount,
		ConvenienceFee: fee,
		PromoDiscount:  promoDiscount,
		FinalTotal:     totalOriginal.Sub(totalDiscount).Sub(promoDiscount).Add(fee),
	}
}

// Subtotal sums the rounded unit prices of items
func Subtotal(items []models.LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice)
	}
	return subtotal
}

// CloneLineItems returns a deep copy of items
func CloneLineItems(items []models.LineItem) []models.LineItem {
	if items == nil {
		return nil
	}
	out := make([]models.LineItem, len(items))
	copy(out, items)
	return out
}
