package handlers

import (
	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
)

// Money leaves the API as a JSON number rounded to cents.
func moneyValue(d decimal.Decimal) float64 {
	return domain.RoundMoney(d).InexactFloat64()
}

func optionalMoney(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := moneyValue(*d)
	return &v
}
