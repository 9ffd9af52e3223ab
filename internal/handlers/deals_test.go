package handlers

import (
	"net/http"
	"testing"
)

func TestDealHandlers_ParseRewardSKUs(t *testing.T) {
	h := NewDealHandlers()

	rr := serve(t, h.Routes, http.MethodPost, "/deals/reward-skus:parse", `{"input":"FILTER-1@4.99*2\nbad sku!, GIFT x3"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	rewards, _ := body["rewards"].([]any)
	if len(rewards) != 3 {
		t.Fatalf("expected 3 rewards, got %v", body["rewards"])
	}
	first, _ := rewards[0].(map[string]any)
	if first["sku"] != "FILTER-1" || first["quantity"] != 2.0 || first["priceOverride"] != 4.99 {
		t.Fatalf("unexpected first reward %v", first)
	}
	second, _ := rewards[1].(map[string]any)
	if second["sku"] != "badsku" {
		t.Fatalf("expected sanitised sku, got %v", second)
	}
	price, present := second["priceOverride"]
	if !present || price != nil {
		t.Fatalf("expected explicit null priceOverride, got %v", second)
	}
	if _, ok := body["encoded"].(string); !ok {
		t.Fatalf("expected encoded string, got %v", body["encoded"])
	}
}

func TestDealHandlers_DecodeStored(t *testing.T) {
	h := NewDealHandlers()

	rr := serve(t, h.Routes, http.MethodPost, "/deals/reward-skus:parse", `{"stored":"[{\"sku\":\"A<b>\",\"quantity\":\"500\"}]"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rewards, _ := decodeBody(t, rr)["rewards"].([]any)
	if len(rewards) != 1 {
		t.Fatalf("expected 1 reward, got %v", rewards)
	}
	reward, _ := rewards[0].(map[string]any)
	if reward["sku"] != "Ab" || reward["quantity"] != 100.0 {
		t.Fatalf("stored values must be re-clamped, got %v", reward)
	}
}

func TestDealHandlers_RequiresExactlyOneSource(t *testing.T) {
	h := NewDealHandlers()
	for _, body := range []string{`{}`, `{"input":"A","stored":"[]"}`} {
		rr := serve(t, h.Routes, http.MethodPost, "/deals/reward-skus:parse", body, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
}
