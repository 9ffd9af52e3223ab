package services

import "errors"

var (
	// ErrPromotionRepositoryMissing indicates the promo code repository dependency is absent.
	ErrPromotionRepositoryMissing = errors.New("promotion service: repository is not configured")
	// ErrPromotionInvalidInput signals a malformed validation request.
	ErrPromotionInvalidInput = errors.New("promotion service: invalid input")
	// ErrPromotionUnavailable indicates the backing store could not be reached.
	ErrPromotionUnavailable = errors.New("promotion service: unavailable")
	// ErrPromotionAlreadyRedeemed indicates the order already consumed this code.
	ErrPromotionAlreadyRedeemed = errors.New("promotion service: already redeemed for order")
)

var (
	ErrGiftCardRepositoryMissing   = errors.New("gift card service: repository is not configured")
	ErrGiftCardInvalidInput        = errors.New("gift card service: invalid input")
	ErrGiftCardActorRequired       = errors.New("gift card service: actor id and name are required")
	ErrGiftCardInvalidBalance      = errors.New("gift card service: balance must be greater than zero")
	ErrGiftCardNotFound            = errors.New("gift card service: gift card not found")
	ErrGiftCardNotActive           = errors.New("gift card service: gift card is not active")
	ErrGiftCardInsufficientBalance = errors.New("gift card service: balance cannot go below zero")
	ErrGiftCardUnavailable         = errors.New("gift card service: unavailable")
)

var (
	ErrTaxDependencyMissing = errors.New("tax service: dependency is not configured")
	ErrTaxInvalidInput      = errors.New("tax service: invalid input")
	// ErrTaxOracleUnavailable accompanies the zero-tax fallback result.
	ErrTaxOracleUnavailable = errors.New("tax service: tax oracle unavailable")
)

var (
	ErrShipmentRepositoryMissing = errors.New("shipment history service: repository is not configured")
	ErrShipmentInvalidInput      = errors.New("shipment history service: invalid input")
	ErrShipmentAlreadyRecorded   = errors.New("shipment history service: shipment already recorded")
	ErrShipmentUnavailable       = errors.New("shipment history service: unavailable")
)
