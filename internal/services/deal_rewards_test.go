package services

import (
	"strings"
	"testing"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestParseRewardSKUs(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []RewardSKU
	}{
		{
			name:  "price and quantity",
			input: "ABC123@19.99*3",
			want:  []RewardSKU{{SKU: "ABC123", Quantity: 3, PriceOverride: floatPtr(19.99)}},
		},
		{
			name:  "invalid characters stripped",
			input: "bad!sku",
			want:  []RewardSKU{{SKU: "badsku", Quantity: 1}},
		},
		{
			name:  "x quantity and separators",
			input: "FILTER-1 X2, FILTER-2\nfilter_3.v2",
			want: []RewardSKU{
				{SKU: "FILTER-1", Quantity: 2},
				{SKU: "FILTER-2", Quantity: 1},
				{SKU: "filter_3.v2", Quantity: 1},
			},
		},
		{
			name:  "quantity before price",
			input: "SKU*3@9.99",
			want:  []RewardSKU{{SKU: "SKU", Quantity: 3, PriceOverride: floatPtr(9.99)}},
		},
		{
			name:  "quantity clamped",
			input: "A*500,B*0,C*99999999999999999999999",
			want: []RewardSKU{
				{SKU: "A", Quantity: 100},
				{SKU: "B", Quantity: 1},
				{SKU: "C", Quantity: 100},
			},
		},
		{
			name:  "prices clamped or dropped",
			input: "A@-5,B@1000000,C@abc,D@",
			want: []RewardSKU{
				{SKU: "A", Quantity: 1, PriceOverride: floatPtr(0)},
				{SKU: "B", Quantity: 1, PriceOverride: floatPtr(999999.99)},
				{SKU: "C", Quantity: 1},
				{SKU: "D", Quantity: 1},
			},
		},
		{
			name:  "empty entries dropped duplicates kept",
			input: " , @5, !!!\n\nDUP,DUP",
			want: []RewardSKU{
				{SKU: "DUP", Quantity: 1},
				{SKU: "DUP", Quantity: 1},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseRewardSKUs(tc.input)
			assertRewards(t, got, tc.want)
		})
	}
}

func TestParseRewardSKUs_TruncatesSKU(t *testing.T) {
	got := ParseRewardSKUs(strings.Repeat("A", 150))
	if len(got) != 1 || len(got[0].SKU) != 100 {
		t.Fatalf("expected sku truncated to 100 got %+v", got)
	}
}

func TestDecodeRewardSKUs(t *testing.T) {
	raw := `[
		{"sku":"ABC123","quantity":3,"priceOverride":19.99},
		{"sku":"bad!sku","quantity":"250","priceOverride":"12.50"},
		{"sku":"!!!","quantity":1},
		{"sku":12345,"quantity":0,"priceOverride":-3},
		{"sku":"NOPRICE","priceOverride":null}
	]`
	got := DecodeRewardSKUs(raw)
	assertRewards(t, got, []RewardSKU{
		{SKU: "ABC123", Quantity: 3, PriceOverride: floatPtr(19.99)},
		{SKU: "badsku", Quantity: 100, PriceOverride: floatPtr(12.5)},
		{SKU: "12345", Quantity: 1, PriceOverride: floatPtr(0)},
		{SKU: "NOPRICE", Quantity: 1},
	})
}

func TestDecodeRewardSKUs_Malformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"sku":"A"}`, `[1,2]`} {
		got := DecodeRewardSKUs(raw)
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty list for %q got %+v", raw, got)
		}
	}
}

func TestEncodeRewardSKUs_RoundTrip(t *testing.T) {
	parsed := ParseRewardSKUs("ABC123@19.99*3, FREE-1")
	encoded, err := EncodeRewardSKUs(parsed)
	if err != nil {
		t.Fatalf("EncodeRewardSKUs: %v", err)
	}
	assertRewards(t, DecodeRewardSKUs(encoded), parsed)
	if !strings.Contains(encoded, `{"sku":"FREE-1","quantity":1,"priceOverride":null}`) {
		t.Fatalf("expected explicit null priceOverride in %s", encoded)
	}
}

func assertRewards(t *testing.T, got, want []RewardSKU) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d rewards got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.SKU != w.SKU || g.Quantity != w.Quantity {
			t.Fatalf("reward %d: expected %s x%d got %s x%d", i, w.SKU, w.Quantity, g.SKU, g.Quantity)
		}
		switch {
		case w.PriceOverride == nil && g.PriceOverride != nil:
			t.Fatalf("reward %d: expected no price got %v", i, *g.PriceOverride)
		case w.PriceOverride != nil && g.PriceOverride == nil:
			t.Fatalf("reward %d: expected price %v got none", i, *w.PriceOverride)
		case w.PriceOverride != nil && *w.PriceOverride != *g.PriceOverride:
			t.Fatalf("reward %d: expected price %v got %v", i, *w.PriceOverride, *g.PriceOverride)
		}
	}
}
