package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
)

// RepositoryError categorises persistence failures for services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err carries a not-found RepositoryError.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries a conflict RepositoryError.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err carries an unavailable RepositoryError.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// PromoCodeRepository reads promo codes and records redemptions.
type PromoCodeRepository interface {
	// FindByCode looks up a code case-insensitively. Missing codes yield a
	// not-found RepositoryError.
	FindByCode(ctx context.Context, code string) (domain.PromoCode, error)
	// Redeem atomically loads the code and the customer's stats, calls guard
	// with them and, when guard returns nil, increments the usage counter and
	// stores redemption. Guard errors are returned unchanged.
	Redeem(ctx context.Context, redemption domain.PromoRedemption, guard RedemptionGuard) (domain.PromoCode, error)
}

// RedemptionGuard decides inside the redeem transaction whether a redemption
// may proceed, returning the discount to record.
type RedemptionGuard func(promo domain.PromoCode, stats domain.CustomerPromoStats) (decimal.Decimal, error)

// CustomerHistoryRepository answers the per-customer promo questions.
type CustomerHistoryRepository interface {
	PromoStats(ctx context.Context, code, customerID string) (domain.CustomerPromoStats, error)
}

// GiftCardMutator changes card in place and returns the ledger entry to
// append. A nil entry means nothing changed and nothing is written.
type GiftCardMutator func(card *domain.GiftCard) (*domain.GiftCardTransaction, error)

// GiftCardRepository stores gift cards and their ledger.
type GiftCardRepository interface {
	Get(ctx context.Context, cardID string) (domain.GiftCard, error)
	// Mutate runs mutate against the current card atomically. Results with a
	// negative balance are rejected with a conflict RepositoryError.
	Mutate(ctx context.Context, cardID string, mutate GiftCardMutator) (domain.GiftCard, error)
}

// TaxLogRepository persists one row per tax oracle call.
type TaxLogRepository interface {
	Insert(ctx context.Context, log domain.TaxCalculationLog) error
}

// ShipmentHistoryRepository persists the carrier agnostic shipment trail.
type ShipmentHistoryRepository interface {
	// Insert stores a new row. An existing id yields a conflict RepositoryError.
	Insert(ctx context.Context, shipment domain.Shipment) error
	// UpdateStatus sets status and updatedAt and writes only the non-nil
	// fields of updates; other columns keep their stored bytes. Unknown ids
	// return (nil, nil) without writing.
	UpdateStatus(ctx context.Context, id string, status domain.ShipmentStatus, updates domain.ShipmentUpdate, updatedAt time.Time) (*domain.Shipment, error)
	List(ctx context.Context, filter domain.ShipmentFilter) (domain.ShipmentPage, error)
}
