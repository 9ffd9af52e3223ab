package firestore

import "github.com/shopspring/decimal"

// Ledger amounts are stored as integer cents.

func toCents(v decimal.Decimal) int64 {
	return v.Round(2).Shift(2).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func optionalDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

func optionalInt(v *int64) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
