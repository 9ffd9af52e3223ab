package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/httpx"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
)

const maxPromotionRequestBody = 64 * 1024

// PromotionHandlers exposes promo code validation, preview and redemption.
type PromotionHandlers struct {
	promotions services.PromotionService
}

// NewPromotionHandlers constructs promotion handlers.
func NewPromotionHandlers(promotions services.PromotionService) *PromotionHandlers {
	return &PromotionHandlers{promotions: promotions}
}

// Routes registers the public promotion endpoints.
func (h *PromotionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validate)
	r.Post("/apply", h.apply)
}

// InternalRoutes registers the order placement redemption endpoint.
func (h *PromotionHandlers) InternalRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/promotions/redeem", h.redeem)
}

type promoCartItemRequest struct {
	ProductID  string          `json:"productId"`
	CategoryID string          `json:"categoryId"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
}

type promoValidateRequest struct {
	Code       string                 `json:"code"`
	CartTotal  decimal.Decimal        `json:"cartTotal"`
	CartItems  []promoCartItemRequest `json:"cartItems"`
	CustomerID string                 `json:"customerId"`
}

type promoApplyRequest struct {
	promoValidateRequest
	ShippingCost decimal.Decimal `json:"shippingCost"`
}

type promoRedeemRequest struct {
	promoValidateRequest
	OrderID string `json:"orderId"`
}

func (req promoValidateRequest) toInput() services.PromoValidationInput {
	items := make([]services.CartItem, 0, len(req.CartItems))
	for _, item := range req.CartItems {
		items = append(items, services.CartItem{
			ProductID:  item.ProductID,
			CategoryID: item.CategoryID,
			Price:      item.Price,
			Quantity:   item.Quantity,
		})
	}
	return services.PromoValidationInput{
		Code:       req.Code,
		CartTotal:  req.CartTotal,
		CartItems:  items,
		CustomerID: req.CustomerID,
	}
}

type promoCodeResponse struct {
	Code          string   `json:"code"`
	Description   string   `json:"description,omitempty"`
	DiscountType  string   `json:"discountType"`
	DiscountValue float64  `json:"discountValue"`
	MinOrder      *float64 `json:"minOrderAmount,omitempty"`
	MaxDiscount   *float64 `json:"maxDiscount,omitempty"`
	FreeShipping  bool     `json:"freeShipping"`
	EndsAt        string   `json:"endsAt,omitempty"`
}

type promoValidationResponse struct {
	Valid          bool               `json:"valid"`
	PromoCode      *promoCodeResponse `json:"promoCode,omitempty"`
	DiscountAmount *float64           `json:"discountAmount,omitempty"`
	Error          string             `json:"error,omitempty"`
	ErrorCode      string             `json:"errorCode,omitempty"`
}

type promoTotalsResponse struct {
	Discount     float64 `json:"discount"`
	NewSubtotal  float64 `json:"newSubtotal"`
	NewShipping  float64 `json:"newShipping"`
	NewTotal     float64 `json:"newTotal"`
	FreeShipping bool    `json:"freeShipping"`
}

type promoApplyResponse struct {
	promoValidationResponse
	Totals *promoTotalsResponse `json:"totals,omitempty"`
}

func (h *PromotionHandlers) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req promoValidateRequest
	if err := httpx.DecodeJSON(r, maxPromotionRequestBody, &req); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	result, err := h.promotions.Validate(ctx, req.toInput())
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPromoValidationResponse(result))
}

func (h *PromotionHandlers) apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req promoApplyRequest
	if err := httpx.DecodeJSON(r, maxPromotionRequestBody, &req); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	result, err := h.promotions.Apply(ctx, services.ApplyPromoCommand{
		Input:        req.toInput(),
		ShippingCost: req.ShippingCost,
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	resp := promoApplyResponse{promoValidationResponse: newPromoValidationResponse(result.Validation)}
	if app := result.Application; app != nil {
		resp.Totals = &promoTotalsResponse{
			Discount:     moneyValue(app.Discount),
			NewSubtotal:  moneyValue(app.NewSubtotal),
			NewShipping:  moneyValue(app.NewShipping),
			NewTotal:     moneyValue(app.NewTotal),
			FreeShipping: app.FreeShipping,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *PromotionHandlers) redeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req promoRedeemRequest
	if err := httpx.DecodeJSON(r, maxPromotionRequestBody, &req); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId is required", http.StatusBadRequest))
		return
	}
	result, err := h.promotions.Redeem(ctx, services.RedeemPromoCommand{
		Input:   req.toInput(),
		OrderID: req.OrderID,
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPromoValidationResponse(result))
}

func newPromoValidationResponse(result services.PromoValidationResult) promoValidationResponse {
	if !result.Valid {
		return promoValidationResponse{
			Valid:     false,
			Error:     result.Error,
			ErrorCode: string(result.ErrorCode),
		}
	}
	discount := moneyValue(result.DiscountAmount)
	resp := promoValidationResponse{Valid: true, DiscountAmount: &discount}
	if promo := result.PromoCode; promo != nil {
		resp.PromoCode = newPromoCodeResponse(*promo)
	}
	return resp
}

func newPromoCodeResponse(promo domain.PromoCode) *promoCodeResponse {
	resp := &promoCodeResponse{
		Code:          promo.Code,
		Description:   promo.Description,
		DiscountType:  string(promo.DiscountType),
		DiscountValue: promo.DiscountValue.InexactFloat64(),
		MinOrder:      optionalMoney(promo.MinOrderAmount),
		MaxDiscount:   optionalMoney(promo.MaxDiscount),
		FreeShipping:  promo.WaivesShipping(),
	}
	if !promo.EndsAt.IsZero() {
		resp.EndsAt = promo.EndsAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writePromotionError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPromotionInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPromotionAlreadyRedeemed):
		httpx.WriteError(ctx, w, httpx.NewError("promo_already_redeemed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPromotionUnavailable), errors.Is(err, services.ErrPromotionRepositoryMissing):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "promotions are temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process promo code", http.StatusInternalServerError))
	}
}
