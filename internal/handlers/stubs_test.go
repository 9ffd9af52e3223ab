package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/auth"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
)

type stubPromotionService struct {
	validateInput services.PromoValidationInput
	validateRes   services.PromoValidationResult
	applyCmd      services.ApplyPromoCommand
	applyRes      services.ApplyPromoResult
	redeemCmd     services.RedeemPromoCommand
	redeemRes     services.PromoValidationResult
	err           error
}

func (s *stubPromotionService) Validate(_ context.Context, input services.PromoValidationInput) (services.PromoValidationResult, error) {
	s.validateInput = input
	return s.validateRes, s.err
}

func (s *stubPromotionService) Apply(_ context.Context, cmd services.ApplyPromoCommand) (services.ApplyPromoResult, error) {
	s.applyCmd = cmd
	return s.applyRes, s.err
}

func (s *stubPromotionService) Redeem(_ context.Context, cmd services.RedeemPromoCommand) (services.PromoValidationResult, error) {
	s.redeemCmd = cmd
	return s.redeemRes, s.err
}

type stubGiftCardService struct {
	card          services.GiftCard
	err           error
	adjustCmd     services.AdjustGiftCardCommand
	voidCmd       services.VoidGiftCardCommand
	reactivateCmd services.ReactivateGiftCardCommand
}

func (s *stubGiftCardService) Get(context.Context, string) (services.GiftCard, error) {
	return s.card, s.err
}

func (s *stubGiftCardService) AdjustBalance(_ context.Context, cmd services.AdjustGiftCardCommand) (services.GiftCard, error) {
	s.adjustCmd = cmd
	return s.card, s.err
}

func (s *stubGiftCardService) Void(_ context.Context, cmd services.VoidGiftCardCommand) (services.GiftCard, error) {
	s.voidCmd = cmd
	return s.card, s.err
}

func (s *stubGiftCardService) Reactivate(_ context.Context, cmd services.ReactivateGiftCardCommand) (services.GiftCard, error) {
	s.reactivateCmd = cmd
	return s.card, s.err
}

type stubTaxService struct {
	cmd    services.CalculateTaxCommand
	result services.TaxResult
	err    error
}

func (s *stubTaxService) Calculate(_ context.Context, cmd services.CalculateTaxCommand) (services.TaxResult, error) {
	s.cmd = cmd
	return s.result, s.err
}

type stubShipmentService struct {
	recorded     domain.Shipment
	recordErr    error
	updateID     string
	updateStatus domain.ShipmentStatus
	updates      *services.ShipmentUpdate
	updated      *domain.Shipment
	updateErr    error
	filter       services.ShipmentFilter
	page         services.ShipmentPage
	listErr      error
}

func (s *stubShipmentService) Record(_ context.Context, shipment domain.Shipment) (domain.Shipment, error) {
	s.recorded = shipment
	if s.recordErr != nil {
		return domain.Shipment{}, s.recordErr
	}
	shipment.ID = "ship-1"
	return shipment, nil
}

func (s *stubShipmentService) UpdateStatus(_ context.Context, id string, status domain.ShipmentStatus, updates *services.ShipmentUpdate) (*domain.Shipment, error) {
	s.updateID = id
	s.updateStatus = status
	s.updates = updates
	return s.updated, s.updateErr
}

func (s *stubShipmentService) List(_ context.Context, filter services.ShipmentFilter) (services.ShipmentPage, error) {
	s.filter = filter
	return s.page, s.listErr
}

// serve mounts routes on a bare chi router and runs one request through it.
func serve(t *testing.T, routes RouteRegistrar, method, target, body string, identity *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	routes(router)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return body
}
