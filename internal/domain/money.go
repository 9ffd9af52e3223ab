package domain

import "github.com/shopspring/decimal"

// RoundMoney rounds to cents, halves away from zero.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Money builds a decimal from a float read off the wire, rounded to cents.
func Money(v float64) decimal.Decimal {
	return RoundMoney(decimal.NewFromFloat(v))
}
