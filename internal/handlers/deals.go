package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/httpx"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
)

const maxDealRequestBody = 128 * 1024

// DealHandlers lets the admin deal editor preview reward SKU input.
type DealHandlers struct{}

// NewDealHandlers constructs deal handlers.
func NewDealHandlers() *DealHandlers {
	return &DealHandlers{}
}

// Routes registers admin deal endpoints.
func (h *DealHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/deals/reward-skus:parse", h.parseRewardSKUs)
}

// Exactly one of Input (free text) or Stored (persisted JSON) is expected.
type rewardSKUParseRequest struct {
	Input  *string `json:"input"`
	Stored *string `json:"stored"`
}

type rewardSKUResponse struct {
	SKU           string   `json:"sku"`
	Quantity      int      `json:"quantity"`
	PriceOverride *float64 `json:"priceOverride"`
}

type rewardSKUParseResponse struct {
	Rewards []rewardSKUResponse `json:"rewards"`
	Encoded string              `json:"encoded"`
}

func (h *DealHandlers) parseRewardSKUs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req rewardSKUParseRequest
	if err := httpx.DecodeJSON(r, maxDealRequestBody, &req); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}

	var rewards []services.RewardSKU
	switch {
	case req.Input != nil && req.Stored == nil:
		rewards = services.ParseRewardSKUs(*req.Input)
	case req.Stored != nil && req.Input == nil:
		rewards = services.DecodeRewardSKUs(*req.Stored)
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "exactly one of input or stored is required", http.StatusBadRequest))
		return
	}

	encoded, err := services.EncodeRewardSKUs(rewards)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to encode reward skus", http.StatusInternalServerError))
		return
	}
	resp := rewardSKUParseResponse{Rewards: make([]rewardSKUResponse, 0, len(rewards)), Encoded: encoded}
	for _, reward := range rewards {
		resp.Rewards = append(resp.Rewards, rewardSKUResponse{
			SKU:           reward.SKU,
			Quantity:      reward.Quantity,
			PriceOverride: reward.PriceOverride,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
