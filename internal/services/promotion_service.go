package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories"
)

const maxPromoCodeLength = 64

// PromotionServiceDeps bundles dependencies required to construct a PromotionService implementation.
type PromotionServiceDeps struct {
	Promotions      repositories.PromoCodeRepository
	CustomerHistory repositories.CustomerHistoryRepository
	Ledger          LedgerPublisher
	Clock           func() time.Time
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type promotionService struct {
	repo    repositories.PromoCodeRepository
	history repositories.CustomerHistoryRepository
	ledger  LedgerPublisher
	clock   func() time.Time
	logger  eventLogger
	newID   func() string
}

// promoRejection carries a failed gate out of the redeem transaction.
type promoRejection struct {
	result PromoValidationResult
}

func (r *promoRejection) Error() string {
	return "promotion service: rejected: " + string(r.result.ErrorCode)
}

// NewPromotionService wires a PromotionService backed by the provided repositories.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Promotions == nil || deps.CustomerHistory == nil {
		return nil, ErrPromotionRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &promotionService{
		repo:    deps.Promotions,
		history: deps.CustomerHistory,
		ledger:  deps.Ledger,
		clock:   func() time.Time { return clock().UTC() },
		logger:  deps.Logger,
		newID:   newID,
	}, nil
}

func (s *promotionService) Validate(ctx context.Context, input PromoValidationInput) (PromoValidationResult, error) {
	if s == nil || s.repo == nil {
		return PromoValidationResult{}, ErrPromotionRepositoryMissing
	}
	input, err := normalizePromoInput(input)
	if err != nil {
		return PromoValidationResult{}, err
	}

	promo, err := s.repo.FindByCode(ctx, input.Code)
	if err != nil {
		if repositories.IsNotFound(err) {
			return rejectPromo(domain.PromoErrNotFound), nil
		}
		return PromoValidationResult{}, s.unavailable(ctx, "promotion.lookup_failed", input.Code, err)
	}

	stats, err := s.customerStats(ctx, promo, input)
	if err != nil {
		return PromoValidationResult{}, s.unavailable(ctx, "promotion.history_failed", input.Code, err)
	}
	return EvaluatePromoCode(&promo, input, stats, s.clock()), nil
}

func (s *promotionService) Apply(ctx context.Context, cmd ApplyPromoCommand) (ApplyPromoResult, error) {
	if cmd.ShippingCost.IsNegative() {
		return ApplyPromoResult{}, fmt.Errorf("%w: shippingCost must be >= 0", ErrPromotionInvalidInput)
	}
	input, err := normalizePromoInput(cmd.Input)
	if err != nil {
		return ApplyPromoResult{}, err
	}
	validation, err := s.Validate(ctx, input)
	if err != nil {
		return ApplyPromoResult{}, err
	}
	if !validation.Valid || validation.PromoCode == nil {
		return ApplyPromoResult{Validation: validation}, nil
	}

	application := ApplyPromoCode(*validation.PromoCode, input.CartTotal, input.CartItems, domain.RoundMoney(cmd.ShippingCost))
	return ApplyPromoResult{Validation: validation, Application: &application}, nil
}

func (s *promotionService) Redeem(ctx context.Context, cmd RedeemPromoCommand) (PromoValidationResult, error) {
	if s == nil || s.repo == nil {
		return PromoValidationResult{}, ErrPromotionRepositoryMissing
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PromoValidationResult{}, fmt.Errorf("%w: orderId is required", ErrPromotionInvalidInput)
	}
	input, err := normalizePromoInput(cmd.Input)
	if err != nil {
		return PromoValidationResult{}, err
	}

	now := s.clock()
	redemption := domain.PromoRedemption{
		Code:       input.Code,
		OrderID:    orderID,
		CustomerID: input.CustomerID,
		RedeemedAt: now,
	}
	var discount decimal.Decimal
	guard := func(promo domain.PromoCode, stats domain.CustomerPromoStats) (decimal.Decimal, error) {
		result := EvaluatePromoCode(&promo, input, stats, now)
		if !result.Valid {
			return decimal.Zero, &promoRejection{result: result}
		}
		discount = result.DiscountAmount
		return result.DiscountAmount, nil
	}

	promo, err := s.repo.Redeem(ctx, redemption, guard)
	if err != nil {
		var rejection *promoRejection
		switch {
		case errors.As(err, &rejection):
			return rejection.result, nil
		case repositories.IsNotFound(err):
			return rejectPromo(domain.PromoErrNotFound), nil
		case errors.Is(err, repositories.ErrAlreadyRedeemed):
			return PromoValidationResult{}, ErrPromotionAlreadyRedeemed
		}
		return PromoValidationResult{}, s.unavailable(ctx, "promotion.redeem_failed", input.Code, err)
	}

	s.logger.log(ctx, "promotion.redeemed", map[string]any{
		"code":       promo.Code,
		"orderId":    orderID,
		"customerId": input.CustomerID,
		"usageCount": promo.UsageCount,
		"discount":   discount.StringFixed(2),
	})
	s.publish(ctx, LedgerEvent{
		EventID:    s.newID(),
		Type:       LedgerEventPromoRedeemed,
		SubjectID:  promo.Code,
		Amount:     discount.StringFixed(2),
		OccurredAt: now,
		Details: map[string]any{
			"orderId":    orderID,
			"customerId": input.CustomerID,
		},
	})

	return PromoValidationResult{
		Valid:          true,
		PromoCode:      &promo,
		DiscountAmount: discount,
	}, nil
}

func (s *promotionService) customerStats(ctx context.Context, promo PromoCode, input PromoValidationInput) (domain.CustomerPromoStats, error) {
	if input.CustomerID == "" {
		return domain.CustomerPromoStats{}, nil
	}
	if promo.PerCustomerLimit == nil && !promo.FirstTimeOnly {
		return domain.CustomerPromoStats{}, nil
	}
	return s.history.PromoStats(ctx, promo.Code, input.CustomerID)
}

func (s *promotionService) unavailable(ctx context.Context, event, code string, err error) error {
	s.logger.log(ctx, event, map[string]any{"code": code, "error": err.Error()})
	return fmt.Errorf("%w: %v", ErrPromotionUnavailable, err)
}

func (s *promotionService) publish(ctx context.Context, event LedgerEvent) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.PublishLedgerEvent(ctx, event); err != nil {
		s.logger.log(ctx, "ledger.publish_failed", map[string]any{"type": event.Type, "error": err.Error()})
	}
}

func normalizePromoInput(input PromoValidationInput) (PromoValidationInput, error) {
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	if input.Code == "" {
		return input, fmt.Errorf("%w: code is required", ErrPromotionInvalidInput)
	}
	if len(input.Code) > maxPromoCodeLength {
		return input, fmt.Errorf("%w: code is too long", ErrPromotionInvalidInput)
	}
	if input.CartTotal.IsNegative() {
		return input, fmt.Errorf("%w: cartTotal must be >= 0", ErrPromotionInvalidInput)
	}
	input.CartTotal = domain.RoundMoney(input.CartTotal)
	input.CustomerID = strings.TrimSpace(input.CustomerID)

	items := make([]CartItem, 0, len(input.CartItems))
	for i, item := range input.CartItems {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.CategoryID = strings.TrimSpace(item.CategoryID)
		if item.ProductID == "" {
			return input, fmt.Errorf("%w: cartItems[%d].productId is required", ErrPromotionInvalidInput, i)
		}
		if item.Price.IsNegative() {
			return input, fmt.Errorf("%w: cartItems[%d].price must be >= 0", ErrPromotionInvalidInput, i)
		}
		if item.Quantity < 1 {
			return input, fmt.Errorf("%w: cartItems[%d].quantity must be >= 1", ErrPromotionInvalidInput, i)
		}
		items = append(items, item)
	}
	input.CartItems = items
	return input, nil
}
