package promo

import (
	"testing"

	"bag-service/internal/bag"
	"bag-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func lineItems(prices ...string) []models.LineItem {
	items := make([]models.LineItem, 0, len(prices))
	for i, p := range prices {
		art := models.ArtworkRecord{
			ID:                 int64(i + 1),
			OriginalPrice:      decimal.RequireFromString(p),
			DiscountPercentage: decimal.Zero,
		}
		items = append(items, models.LineItem{Artwork: art, UnitPrice: bag.UnitPrice(art)})
	}
	return items
}

func discounted(price, pct string) models.LineItem {
	art := models.ArtworkRecord{
		ID:                 1,
		OriginalPrice:      decimal.RequireFromString(price),
		DiscountPercentage: decimal.RequireFromString(pct),
	}
	return models.LineItem{Artwork: art, UnitPrice: bag.UnitPrice(art)}
}

func TestApply(t *testing.T) {
	none := models.PromoState{DiscountAmount: decimal.Zero}
	active := models.PromoState{Code: "ART10", DiscountAmount: decimal.NewFromInt(100)}

	tests := []struct {
		name         string
		code         string
		items        []models.LineItem
		current      models.PromoState
		wantOK       bool
		wantCode     string
		wantDiscount string
		wantMessage  string
	}{
		{
			name:         "percentage code on single item",
			code:         "ART10",
			items:        lineItems("1000"),
			current:      none,
			wantOK:       true,
			wantCode:     "ART10",
			wantDiscount: "100",
			wantMessage:  "Promo code ART10 applied!",
		},
		{
			name:         "code is trimmed and case-insensitive",
			code:         "  art20 ",
			items:        lineItems("1000", "2499"),
			current:      none,
			wantOK:       true,
			wantCode:     "ART20",
			wantDiscount: "700",
			wantMessage:  "Promo code ART20 applied!",
		},
		{
			name:         "fixed code independent of contents",
			code:         "save500",
			items:        lineItems("12000", "1"),
			current:      none,
			wantOK:       true,
			wantCode:     "SAVE500",
			wantDiscount: "500",
			wantMessage:  "Promo code SAVE500 applied!",
		},
		{
			name:         "fixed code is not capped by subtotal",
			code:         "SAVE500",
			items:        lineItems("300"),
			current:      none,
			wantOK:       true,
			wantCode:     "SAVE500",
			wantDiscount: "500",
			wantMessage:  "Promo code SAVE500 applied!",
		},
		{
			name:         "new code replaces previous",
			code:         "SAVE500",
			items:        lineItems("1000"),
			current:      active,
			wantOK:       true,
			wantCode:     "SAVE500",
			wantDiscount: "500",
			wantMessage:  "Promo code SAVE500 applied!",
		},
		{
			name:         "unknown code keeps current promo",
			code:         "FREEART",
			items:        lineItems("1000"),
			current:      active,
			wantOK:       false,
			wantCode:     "ART10",
			wantDiscount: "100",
			wantMessage:  "Invalid promo code.",
		},
		{
			name:         "whitespace code",
			code:         "   ",
			items:        lineItems("1000"),
			current:      none,
			wantOK:       false,
			wantDiscount: "0",
			wantMessage:  "Please enter a promo code.",
		},
		{
			name:         "empty bag",
			code:         "ART10",
			items:        nil,
			current:      none,
			wantOK:       false,
			wantDiscount: "0",
			wantMessage:  "Add items to your bag before applying a promo code.",
		},
	}

	e := NewDefaultEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Apply(tt.code, tt.items, tt.current)

			assert.Equal(t, tt.wantOK, got.OK)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantDiscount, got.DiscountAmount.String())
			assert.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestApplyUsesRoundedUnitPrices(t *testing.T) {
	// unit prices 6844 + 10719 = 17563; 10% = 1756.3 -> 1756
	items := []models.LineItem{discounted("7777", "12"), discounted("15999", "33")}

	got := NewDefaultEngine().Apply("ART10", items, models.PromoState{})

	assert.True(t, got.OK)
	assert.Equal(t, "1756", got.DiscountAmount.String())
}

func TestCapAtSubtotal(t *testing.T) {
	e := NewDefaultEngine(WithCapAtSubtotal(true))

	got := e.Apply("SAVE500", lineItems("300"), models.PromoState{})

	assert.True(t, got.OK)
	assert.Equal(t, "300", got.DiscountAmount.String())
}

func TestReprice(t *testing.T) {
	e := NewDefaultEngine()

	state := models.PromoState{Code: "ART10", DiscountAmount: decimal.NewFromInt(300)}

	repriced := e.Reprice(state, lineItems("1000"))
	assert.Equal(t, "ART10", repriced.Code)
	assert.Equal(t, "100", repriced.DiscountAmount.String())

	cleared := e.Reprice(state, nil)
	assert.False(t, cleared.Active())
	assert.True(t, cleared.DiscountAmount.IsZero())

	fixed := e.Reprice(models.PromoState{Code: "SAVE500", DiscountAmount: decimal.NewFromInt(500)}, lineItems("50"))
	assert.Equal(t, "500", fixed.DiscountAmount.String())

	inactive := e.Reprice(models.PromoState{}, lineItems("1000"))
	assert.False(t, inactive.Active())
}

func TestLookup(t *testing.T) {
	e := NewDefaultEngine()

	rule, ok := e.Lookup("save500")
	assert.True(t, ok)
	assert.Equal(t, DiscountTypeFixed, rule.Type)

	_, ok = e.Lookup("nope")
	assert.False(t, ok)
}
