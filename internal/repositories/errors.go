package repositories

import "errors"

// Business rules enforced inside store transactions. Implementations wrap
// these in a conflict RepositoryError so callers can tell them apart from
// contention or duplicate-key failures.
var (
	// ErrInsufficientBalance rejects a gift card mutation that would leave a
	// negative balance.
	ErrInsufficientBalance = errors.New("gift card balance would go below zero")
	// ErrAlreadyRedeemed rejects a second redemption of a promo code for the
	// same order.
	ErrAlreadyRedeemed = errors.New("promo code already redeemed for order")
)
