package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/httpx"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
)

const maxTaxRequestBody = 128 * 1024

// TaxHandlers exposes checkout tax calculation.
type TaxHandlers struct {
	tax services.TaxService
}

// NewTaxHandlers constructs tax handlers.
func NewTaxHandlers(tax services.TaxService) *TaxHandlers {
	return &TaxHandlers{tax: tax}
}

// Routes registers the public tax endpoints.
func (h *TaxHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/calculate", h.calculate)
}

type taxAddressRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

func (a taxAddressRequest) toInput() services.TaxAddressInput {
	return services.TaxAddressInput{
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		ZipCode: a.ZipCode,
		Country: a.Country,
	}
}

type taxLineItemRequest struct {
	ID             string          `json:"id"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Discount       decimal.Decimal `json:"discount"`
	ProductTaxCode string          `json:"productTaxCode"`
}

type taxCalculateRequest struct {
	OrderID     string               `json:"orderId"`
	ToAddress   taxAddressRequest    `json:"toAddress"`
	FromAddress *taxAddressRequest   `json:"fromAddress"`
	Amount      decimal.Decimal      `json:"amount"`
	Shipping    decimal.Decimal      `json:"shipping"`
	LineItems   []taxLineItemRequest `json:"lineItems"`
}

type taxResultResponse struct {
	Rate            float64 `json:"rate"`
	Amount          float64 `json:"amount"`
	TaxableAmount   float64 `json:"taxableAmount"`
	HasNexus        bool    `json:"hasNexus"`
	ShippingTaxable bool    `json:"shippingTaxable"`
}

func (h *TaxHandlers) calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tax == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "tax service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req taxCalculateRequest
	if err := httpx.DecodeJSON(r, maxTaxRequestBody, &req); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}

	cmd := services.CalculateTaxCommand{
		OrderID:   req.OrderID,
		ToAddress: req.ToAddress.toInput(),
		Amount:    req.Amount,
		Shipping:  req.Shipping,
		LineItems: make([]services.TaxLineItemInput, 0, len(req.LineItems)),
	}
	if req.FromAddress != nil {
		from := req.FromAddress.toInput()
		cmd.FromAddress = &from
	}
	for _, item := range req.LineItems {
		cmd.LineItems = append(cmd.LineItems, services.TaxLineItemInput{
			ID:             item.ID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Discount:       item.Discount,
			ProductTaxCode: item.ProductTaxCode,
		})
	}

	result, err := h.tax.Calculate(ctx, cmd)
	if err != nil {
		writeTaxError(ctx, w, result, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newTaxResultResponse(result))
}

func newTaxResultResponse(result services.TaxResult) taxResultResponse {
	return taxResultResponse{
		Rate:            result.Rate,
		Amount:          moneyValue(result.Amount),
		TaxableAmount:   moneyValue(result.TaxableAmount),
		HasNexus:        result.HasNexus,
		ShippingTaxable: result.ShippingTaxable,
	}
}

// An oracle failure still answers with the zero-tax body so checkout can continue.
func writeTaxError(ctx context.Context, w http.ResponseWriter, fallback services.TaxResult, err error) {
	switch {
	case errors.Is(err, services.ErrTaxOracleUnavailable):
		httpx.WriteJSON(w, http.StatusInternalServerError, newTaxResultResponse(fallback))
	case errors.Is(err, services.ErrTaxInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTaxDependencyMissing):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "tax service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to calculate tax", http.StatusInternalServerError))
	}
}
