package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/httpx"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
)

const maxShipmentRequestBody = 512 * 1024

// AdminShipmentHandlers exposes the carrier agnostic shipment history.
type AdminShipmentHandlers struct {
	shipments services.ShipmentHistoryService
}

// NewAdminShipmentHandlers constructs admin shipment handlers.
func NewAdminShipmentHandlers(shipments services.ShipmentHistoryService) *AdminShipmentHandlers {
	return &AdminShipmentHandlers{shipments: shipments}
}

// Routes registers admin shipment endpoints.
func (h *AdminShipmentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/shipments", func(rt chi.Router) {
		rt.Get("/", h.list)
		rt.Post("/", h.record)
		rt.Patch("/{shipmentId}/status", h.updateStatus)
	})
}

type shipmentAddressPayload struct {
	Name       string `json:"name,omitempty"`
	Company    string `json:"company,omitempty"`
	Street1    string `json:"street1,omitempty"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (p *shipmentAddressPayload) toDomain() *domain.ShipmentAddress {
	if p == nil {
		return nil
	}
	addr := domain.ShipmentAddress(*p)
	return &addr
}

func newShipmentAddressPayload(addr *domain.ShipmentAddress) *shipmentAddressPayload {
	if addr == nil {
		return nil
	}
	p := shipmentAddressPayload(*addr)
	return &p
}

type shipmentRecordRequest struct {
	ID                string                  `json:"id"`
	OrderID           string                  `json:"orderId"`
	Carrier           string                  `json:"carrier"`
	CarrierShipmentID string                  `json:"carrierShipmentId"`
	TrackingNumber    string                  `json:"trackingNumber"`
	ServiceCode       string                  `json:"serviceCode"`
	ServiceName       string                  `json:"serviceName"`
	Status            string                  `json:"status"`
	LabelURL          string                  `json:"labelUrl"`
	LabelFormat       string                  `json:"labelFormat"`
	ShipFrom          *shipmentAddressPayload `json:"shipFrom"`
	ShipTo            *shipmentAddressPayload `json:"shipTo"`
	PackageCount      int                     `json:"packageCount"`
	TotalWeight       float64                 `json:"totalWeight"`
	ShippingCost      decimal.Decimal         `json:"shippingCost"`
	Currency          string                  `json:"currency"`
	Metadata          map[string]any          `json:"metadata"`
	RawResponse       any                     `json:"rawResponse"`
}

type shipmentStatusRequest struct {
	Status      string         `json:"status"`
	LabelURL    *string        `json:"labelUrl"`
	RawResponse any            `json:"rawResponse"`
	Metadata    map[string]any `json:"metadata"`
}

type shipmentResponse struct {
	ID                string                  `json:"id"`
	OrderID           string                  `json:"orderId"`
	Carrier           string                  `json:"carrier"`
	CarrierShipmentID string                  `json:"carrierShipmentId,omitempty"`
	TrackingNumber    string                  `json:"trackingNumber,omitempty"`
	ServiceCode       string                  `json:"serviceCode,omitempty"`
	ServiceName       string                  `json:"serviceName,omitempty"`
	Status            string                  `json:"status"`
	LabelURL          string                  `json:"labelUrl,omitempty"`
	LabelFormat       string                  `json:"labelFormat,omitempty"`
	ShipFrom          *shipmentAddressPayload `json:"shipFrom,omitempty"`
	ShipTo            *shipmentAddressPayload `json:"shipTo,omitempty"`
	PackageCount      int                     `json:"packageCount"`
	TotalWeight       float64                 `json:"totalWeight"`
	ShippingCost      float64                 `json:"shippingCost"`
	Currency          string                  `json:"currency"`
	Metadata          map[string]any          `json:"metadata,omitempty"`
	RawResponse       any                     `json:"rawResponse,omitempty"`
	CreatedAt         string                  `json:"createdAt"`
	UpdatedAt         string                  `json:"updatedAt"`
}

type shipmentPageResponse struct {
	Items  []shipmentResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func (h *AdminShipmentHandlers) record(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "shipment service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req shipmentRecordRequest
	if err := httpx.DecodeJSON(r, maxShipmentRequestBody, &req); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	recorded, err := h.shipments.Record(ctx, domain.Shipment{
		ID:                req.ID,
		OrderID:           req.OrderID,
		Carrier:           req.Carrier,
		CarrierShipmentID: req.CarrierShipmentID,
		TrackingNumber:    req.TrackingNumber,
		ServiceCode:       req.ServiceCode,
		ServiceName:       req.ServiceName,
		Status:            domain.ShipmentStatus(req.Status),
		LabelURL:          req.LabelURL,
		LabelFormat:       req.LabelFormat,
		ShipFrom:          req.ShipFrom.toDomain(),
		ShipTo:            req.ShipTo.toDomain(),
		PackageCount:      req.PackageCount,
		TotalWeight:       req.TotalWeight,
		ShippingCost:      req.ShippingCost,
		Currency:          req.Currency,
		Metadata:          req.Metadata,
		RawResponse:       req.RawResponse,
	})
	if err != nil {
		writeShipmentError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newShipmentResponse(recorded))
}

func (h *AdminShipmentHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "shipment service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req shipmentStatusRequest
	if err := httpx.DecodeJSON(r, maxShipmentRequestBody, &req); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	var updates *services.ShipmentUpdate
	if req.LabelURL != nil || req.RawResponse != nil || req.Metadata != nil {
		updates = &services.ShipmentUpdate{
			LabelURL:    req.LabelURL,
			RawResponse: req.RawResponse,
			Metadata:    req.Metadata,
		}
	}
	updated, err := h.shipments.UpdateStatus(ctx, chi.URLParam(r, "shipmentId"), domain.ShipmentStatus(req.Status), updates)
	if err != nil {
		writeShipmentError(ctx, w, err)
		return
	}
	if updated == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipment_not_found", "shipment not found", http.StatusNotFound))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newShipmentResponse(*updated))
}

func (h *AdminShipmentHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "shipment service unavailable", http.StatusServiceUnavailable))
		return
	}
	filter, err := parseShipmentFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.shipments.List(ctx, filter)
	if err != nil {
		writeShipmentError(ctx, w, err)
		return
	}
	resp := shipmentPageResponse{
		Items:  make([]shipmentResponse, 0, len(page.Items)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	for _, s := range page.Items {
		resp.Items = append(resp.Items, newShipmentResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func parseShipmentFilter(q url.Values) (services.ShipmentFilter, error) {
	filter := services.ShipmentFilter{
		OrderID: q.Get("orderId"),
		Carrier: q.Get("carrier"),
		Status:  domain.ShipmentStatus(q.Get("status")),
		Search:  q.Get("q"),
	}
	var err error
	if filter.Limit, err = queryInt(q, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(q, "offset"); err != nil {
		return filter, err
	}
	if filter.From, err = queryTime(q, "from", false); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(q, "to", true); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryInt(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func queryTime(q url.Values, key string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", key)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func newShipmentResponse(s domain.Shipment) shipmentResponse {
	return shipmentResponse{
		ID:                s.ID,
		OrderID:           s.OrderID,
		Carrier:           s.Carrier,
		CarrierShipmentID: s.CarrierShipmentID,
		TrackingNumber:    s.TrackingNumber,
		ServiceCode:       s.ServiceCode,
		ServiceName:       s.ServiceName,
		Status:            string(s.Status),
		LabelURL:          s.LabelURL,
		LabelFormat:       s.LabelFormat,
		ShipFrom:          newShipmentAddressPayload(s.ShipFrom),
		ShipTo:            newShipmentAddressPayload(s.ShipTo),
		PackageCount:      s.PackageCount,
		TotalWeight:       s.TotalWeight,
		ShippingCost:      moneyValue(s.ShippingCost),
		Currency:          s.Currency,
		Metadata:          s.Metadata,
		RawResponse:       s.RawResponse,
		CreatedAt:         s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeShipmentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrShipmentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrShipmentAlreadyRecorded):
		httpx.WriteError(ctx, w, httpx.NewError("shipment_already_recorded", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrShipmentUnavailable), errors.Is(err, services.ErrShipmentRepositoryMissing):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "shipment history is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process shipment", http.StatusInternalServerError))
	}
}
