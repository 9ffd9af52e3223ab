package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
)

var hundred = decimal.NewFromInt(100)

var promoErrorMessages = map[domain.PromoErrorCode]string{
	domain.PromoErrNotFound:              "Invalid promo code",
	domain.PromoErrInactive:              "This promo code is no longer active",
	domain.PromoErrNotStarted:            "This promo code is not yet valid",
	domain.PromoErrExpired:               "This promo code has expired",
	domain.PromoErrUsageLimitReached:     "This promo code has reached its usage limit",
	domain.PromoErrCustomerLimitReached:  "You have already used this promo code the maximum number of times",
	domain.PromoErrFirstTimeOnly:         "This promo code is only valid for first-time customers",
	domain.PromoErrProductsNotApplicable: "This promo code does not apply to any items in your cart",
}

// PromoErrorMessage returns the shopper facing message for code.
func PromoErrorMessage(code domain.PromoErrorCode) string {
	if msg, ok := promoErrorMessages[code]; ok {
		return msg
	}
	return promoErrorMessages[domain.PromoErrNotFound]
}

func rejectPromo(code domain.PromoErrorCode) PromoValidationResult {
	return PromoValidationResult{
		Valid:     false,
		Error:     PromoErrorMessage(code),
		ErrorCode: code,
	}
}

// EvaluatePromoCode runs the validation gates against an already loaded
// promo code. A nil promo means the lookup found nothing. stats is only
// consulted when input carries a customer id.
func EvaluatePromoCode(promo *PromoCode, input PromoValidationInput, stats domain.CustomerPromoStats, now time.Time) PromoValidationResult {
	if promo == nil {
		return rejectPromo(domain.PromoErrNotFound)
	}
	if !promo.Active {
		return rejectPromo(domain.PromoErrInactive)
	}
	if !promo.StartsAt.IsZero() && now.Before(promo.StartsAt) {
		return rejectPromo(domain.PromoErrNotStarted)
	}
	if !promo.EndsAt.IsZero() && now.After(promo.EndsAt) {
		return rejectPromo(domain.PromoErrExpired)
	}
	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return rejectPromo(domain.PromoErrUsageLimitReached)
	}
	if input.CustomerID != "" && promo.PerCustomerLimit != nil && stats.Redemptions >= *promo.PerCustomerLimit {
		return rejectPromo(domain.PromoErrCustomerLimitReached)
	}
	if promo.FirstTimeOnly && (input.CustomerID == "" || stats.HasPriorOrders) {
		return rejectPromo(domain.PromoErrFirstTimeOnly)
	}
	if promo.HasAllowList() && !anyItemApplies(*promo, input.CartItems) {
		return rejectPromo(domain.PromoErrProductsNotApplicable)
	}

	discount := CalculatePromoDiscount(*promo, input.CartTotal, input.CartItems)

	// minimum is checked against the raw cart total, after the discount is known
	if promo.MinOrderAmount != nil && input.CartTotal.LessThan(*promo.MinOrderAmount) {
		result := rejectPromo(domain.PromoErrMinOrderNotMet)
		result.Error = fmt.Sprintf("Minimum order of $%s required", promo.MinOrderAmount.StringFixed(2))
		return result
	}

	matched := *promo
	return PromoValidationResult{
		Valid:          true,
		PromoCode:      &matched,
		DiscountAmount: discount,
	}
}

// CalculatePromoDiscount computes the discount promo grants on a cart.
// Allow-listed promos only discount the matching line items.
func CalculatePromoDiscount(promo PromoCode, cartTotal decimal.Decimal, items []CartItem) decimal.Decimal {
	applicable := cartTotal
	if promo.HasAllowList() {
		applicable = decimal.Zero
		for _, item := range items {
			if itemApplies(promo, item) {
				applicable = applicable.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			}
		}
	}
	if applicable.IsNegative() {
		applicable = decimal.Zero
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case domain.PromoDiscountPercentage:
		discount = applicable.Mul(promo.DiscountValue).Div(hundred)
		if promo.MaxDiscount != nil && discount.GreaterThan(*promo.MaxDiscount) {
			discount = *promo.MaxDiscount
		}
	case domain.PromoDiscountFixed:
		discount = decimal.Min(promo.DiscountValue, applicable)
	default:
		discount = decimal.Zero
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(applicable) {
		discount = applicable
	}
	return domain.RoundMoney(discount)
}

// ApplyPromoCode returns the cart totals after promo is applied.
func ApplyPromoCode(promo PromoCode, cartTotal decimal.Decimal, items []CartItem, shippingCost decimal.Decimal) PromoApplication {
	discount := CalculatePromoDiscount(promo, cartTotal, items)

	subtotal := cartTotal.Sub(discount)
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	freeShipping := promo.WaivesShipping()
	shipping := shippingCost
	if freeShipping || shipping.IsNegative() {
		shipping = decimal.Zero
	}

	return PromoApplication{
		Discount:     discount,
		NewSubtotal:  domain.RoundMoney(subtotal),
		NewShipping:  domain.RoundMoney(shipping),
		NewTotal:     domain.RoundMoney(subtotal.Add(shipping)),
		FreeShipping: freeShipping,
	}
}

func anyItemApplies(promo PromoCode, items []CartItem) bool {
	for _, item := range items {
		if itemApplies(promo, item) {
			return true
		}
	}
	return false
}

func itemApplies(promo PromoCode, item CartItem) bool {
	for _, id := range promo.ApplicableProducts {
		if id == item.ProductID {
			return true
		}
	}
	if item.CategoryID == "" {
		return false
	}
	for _, id := range promo.ApplicableCategories {
		if id == item.CategoryID {
			return true
		}
	}
	return false
}
