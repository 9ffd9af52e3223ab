package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
)

func TestTaxHandlers_CalculateSuccess(t *testing.T) {
	svc := &stubTaxService{result: services.TaxResult{
		Rate:            0.08,
		Amount:          decimal.RequireFromString("8.4"),
		TaxableAmount:   decimal.NewFromInt(105),
		HasNexus:        true,
		ShippingTaxable: true,
	}}
	h := NewTaxHandlers(svc)

	rr := serve(t, h.Routes, http.MethodPost, "/calculate",
		`{"toAddress":{"street":"1 Main St","city":"Columbia","state":"SC","zipCode":"29201"},"amount":100,"shipping":5,"lineItems":[{"id":"l1","quantity":2,"unitPrice":50}]}`, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["rate"] != 0.08 || body["amount"] != 8.4 || body["hasNexus"] != true {
		t.Fatalf("unexpected body %v", body)
	}
	if svc.cmd.ToAddress.ZipCode != "29201" || svc.cmd.FromAddress != nil {
		t.Fatalf("address not forwarded: %+v", svc.cmd)
	}
	if len(svc.cmd.LineItems) != 1 || !svc.cmd.LineItems[0].UnitPrice.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("line items not forwarded: %+v", svc.cmd.LineItems)
	}
}

func TestTaxHandlers_OracleFailureReturnsZeroTaxWith500(t *testing.T) {
	svc := &stubTaxService{err: fmt.Errorf("%w: status 503", services.ErrTaxOracleUnavailable)}
	h := NewTaxHandlers(svc)

	rr := serve(t, h.Routes, http.MethodPost, "/calculate",
		`{"toAddress":{"street":"1 Main St","city":"Columbia","state":"SC","zipCode":"29201"},"amount":100}`, nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	want := map[string]any{"rate": 0.0, "amount": 0.0, "taxableAmount": 0.0, "hasNexus": false, "shippingTaxable": false}
	if len(body) != len(want) {
		t.Fatalf("unexpected fallback body %v", body)
	}
	for k, v := range want {
		if body[k] != v {
			t.Fatalf("fallback %s: expected %v, got %v", k, v, body[k])
		}
	}
}

func TestTaxHandlers_InvalidInput(t *testing.T) {
	svc := &stubTaxService{err: fmt.Errorf("%w: zip code is required", services.ErrTaxInvalidInput)}
	h := NewTaxHandlers(svc)

	rr := serve(t, h.Routes, http.MethodPost, "/calculate", `{"toAddress":{"state":"SC"},"amount":1}`, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
