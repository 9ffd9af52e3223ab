package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/auth"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/httpx"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
)

const maxGiftCardRequestBody = 16 * 1024

// AdminGiftCardHandlers exposes audited gift card ledger operations.
type AdminGiftCardHandlers struct {
	giftCards services.GiftCardService
}

// NewAdminGiftCardHandlers constructs admin gift card handlers.
func NewAdminGiftCardHandlers(giftCards services.GiftCardService) *AdminGiftCardHandlers {
	return &AdminGiftCardHandlers{giftCards: giftCards}
}

// Routes registers admin gift card endpoints.
func (h *AdminGiftCardHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/gift-cards", func(rt chi.Router) {
		rt.Get("/{cardId}", h.get)
		rt.Post("/{cardId}:adjust", h.adjust)
		rt.Post("/{cardId}:void", h.void)
		rt.Post("/{cardId}:reactivate", h.reactivate)
	})
}

type giftCardAdjustRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Note   string           `json:"note"`
}

type giftCardVoidRequest struct {
	Note string `json:"note"`
}

type giftCardReactivateRequest struct {
	Balance *decimal.Decimal `json:"balance"`
	Note    string           `json:"note"`
}

type giftCardResponse struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	InitialBalance float64 `json:"initialBalance"`
	Balance        float64 `json:"balance"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	RecipientEmail string  `json:"recipientEmail,omitempty"`
	CreatedAt      string  `json:"createdAt,omitempty"`
	UpdatedAt      string  `json:"updatedAt,omitempty"`
}

func (h *AdminGiftCardHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.giftCards == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "gift card service unavailable", http.StatusServiceUnavailable))
		return
	}
	card, err := h.giftCards.Get(ctx, chi.URLParam(r, "cardId"))
	if err != nil {
		writeGiftCardError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newGiftCardResponse(card))
}

func (h *AdminGiftCardHandlers) adjust(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.prepare(w, r)
	if !ok {
		return
	}
	var req giftCardAdjustRequest
	if err := httpx.DecodeJSON(r, maxGiftCardRequestBody, &req); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	if req.Amount == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "amount is required", http.StatusBadRequest))
		return
	}
	card, err := h.giftCards.AdjustBalance(ctx, services.AdjustGiftCardCommand{
		CardID: chi.URLParam(r, "cardId"),
		Amount: *req.Amount,
		Note:   req.Note,
		Actor:  actor,
	})
	if err != nil {
		writeGiftCardError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newGiftCardResponse(card))
}

func (h *AdminGiftCardHandlers) void(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.prepare(w, r)
	if !ok {
		return
	}
	var req giftCardVoidRequest
	if err := httpx.DecodeJSON(r, maxGiftCardRequestBody, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	card, err := h.giftCards.Void(ctx, services.VoidGiftCardCommand{
		CardID: chi.URLParam(r, "cardId"),
		Note:   req.Note,
		Actor:  actor,
	})
	if err != nil {
		writeGiftCardError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newGiftCardResponse(card))
}

func (h *AdminGiftCardHandlers) reactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.prepare(w, r)
	if !ok {
		return
	}
	var req giftCardReactivateRequest
	if err := httpx.DecodeJSON(r, maxGiftCardRequestBody, &req); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	if req.Balance == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "balance is required", http.StatusBadRequest))
		return
	}
	card, err := h.giftCards.Reactivate(ctx, services.ReactivateGiftCardCommand{
		CardID:  chi.URLParam(r, "cardId"),
		Balance: *req.Balance,
		Note:    req.Note,
		Actor:   actor,
	})
	if err != nil {
		writeGiftCardError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newGiftCardResponse(card))
}

// prepare checks the service and resolves the acting staff member.
func (h *AdminGiftCardHandlers) prepare(w http.ResponseWriter, r *http.Request) (services.GiftCardActor, bool) {
	ctx := r.Context()
	if h.giftCards == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "gift card service unavailable", http.StatusServiceUnavailable))
		return services.GiftCardActor{}, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.GiftCardActor{}, false
	}
	return services.GiftCardActor{ID: identity.UID, Name: identity.DisplayName()}, true
}

func newGiftCardResponse(card services.GiftCard) giftCardResponse {
	resp := giftCardResponse{
		ID:             card.ID,
		Code:           card.Code,
		InitialBalance: moneyValue(card.InitialBalance),
		Balance:        moneyValue(card.Balance),
		Currency:       card.Currency,
		Status:         string(card.Status),
		RecipientEmail: card.RecipientEmail,
	}
	if !card.CreatedAt.IsZero() {
		resp.CreatedAt = card.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !card.UpdatedAt.IsZero() {
		resp.UpdatedAt = card.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeGiftCardError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrGiftCardInvalidInput), errors.Is(err, services.ErrGiftCardInvalidBalance):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrGiftCardActorRequired):
		httpx.WriteError(ctx, w, httpx.NewError("actor_required", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrGiftCardNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("gift_card_not_found", "gift card not found", http.StatusNotFound))
	case errors.Is(err, services.ErrGiftCardNotActive):
		httpx.WriteError(ctx, w, httpx.NewError("gift_card_not_active", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrGiftCardInsufficientBalance):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_balance", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrGiftCardUnavailable), errors.Is(err, services.ErrGiftCardRepositoryMissing):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "gift cards are temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process gift card", http.StatusInternalServerError))
	}
}
