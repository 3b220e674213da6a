package promo

import (
	"fmt"
	"strings"

	"bag-service/internal/bag"
	"bag-service/internal/models"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a rule computes its discount
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED_AMOUNT"
)

// Rule maps a promo code to a discount
type Rule struct {
	Code   string
	Type   DiscountType
	Amount decimal.Decimal
}

// DefaultRules is the storefront's promo table
var DefaultRules = []Rule{
	{Code: "ART10", Type: DiscountTypePercentage, Amount: decimal.NewFromInt(10)},
	{Code: "ART20", Type: DiscountTypePercentage, Amount: decimal.NewFromInt(20)},
	{Code: "SAVE500", Type: DiscountTypeFixed, Amount: decimal.NewFromInt(500)},
}

var hundred = decimal.NewFromInt(100)

// Engine applies promo codes against bag line items. It holds no session state.
type Engine struct {
	rules         map[string]Rule
	capAtSubtotal bool
}

// Option configures an Engine
type Option func(*Engine)

// WithCapAtSubtotal limits fixed discounts to the bag subtotal
func WithCapAtSubtotal(cap bool) Option {
	return func(e *Engine) {
		e.capAtSubtotal = cap
	}
}

// NewEngine creates an engine over rules; codes are matched case-insensitively
func NewEngine(rules []Rule, opts ...Option) *Engine {
	e := &Engine{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		e.rules[normalize(r.Code)] = r
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewDefaultEngine creates an engine over DefaultRules
func NewDefaultEngine(opts ...Option) *Engine {
	return NewEngine(DefaultRules, opts...)
}

// Lookup returns the rule for code
func (e *Engine) Lookup(code string) (Rule, bool) {
	r, ok := e.rules[normalize(code)]
	return r, ok
}

// Apply evaluates code against items. A rejected code leaves current in
// place: the result carries the current code and discount with OK false.
func (e *Engine) Apply(code string, items []models.LineItem, current models.PromoState) models.PromoResult {
	rejected := func(message string) models.PromoResult {
		return models.PromoResult{
			OK:             false,
			Code:           current.Code,
			DiscountAmount: current.DiscountAmount,
			Message:        message,
		}
	}

	normalized := normalize(code)
	if normalized == "" {
		return rejected(models.MsgPromoEmpty)
	}

	rule, ok := e.rules[normalized]
	if !ok {
		return rejected(models.MsgPromoInvalid)
	}

	if len(items) == 0 {
		return rejected(models.MsgPromoEmptyBag)
	}

	return models.PromoResult{
		OK:             true,
		Code:           rule.Code,
		DiscountAmount: e.discount(rule, items),
		Message:        fmt.Sprintf("Promo code %s applied!", rule.Code),
	}
}

// Reprice re-evaluates the active promo after the bag changed.
// An empty bag or a code no longer in the table clears the promo.
func (e *Engine) Reprice(state models.PromoState, items []models.LineItem) models.PromoState {
	if !state.Active() || len(items) == 0 {
		return models.PromoState{DiscountAmount: decimal.Zero}
	}

	rule, ok := e.rules[normalize(state.Code)]
	if !ok {
		return models.PromoState{DiscountAmount: decimal.Zero}
	}
	return models.PromoState{Code: rule.Code, DiscountAmount: e.discount(rule, items)}
}

func (e *Engine) discount(rule Rule, items []models.LineItem) decimal.Decimal {
	subtotal := bag.Subtotal(items)

	switch rule.Type {
	case DiscountTypePercentage:
		return bag.RoundHalfUp(subtotal.Mul(rule.Amount).Div(hundred))
	case DiscountTypeFixed:
		if e.capAtSubtotal && rule.Amount.GreaterThan(subtotal) {
			return subtotal
		}
		return rule.Amount
	default:
		return decimal.Zero
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
