package firestore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
)

func TestPromoCodeDocumentToDomain(t *testing.T) {
	starts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.FixedZone("EST", -5*3600))
	limit := int64(100)
	minOrder := 50.0
	doc := promoCodeDocument{
		Code:           " save10 ",
		DiscountType:   "Percentage",
		DiscountValue:  10,
		MinOrderAmount: &minOrder,
		StartsAt:       &starts,
		UsageLimit:     &limit,
		UsageCount:     4,
		Active:         true,
	}

	promo := doc.toDomain("SAVE10")
	if promo.Code != "SAVE10" || promo.DiscountType != domain.PromoDiscountPercentage {
		t.Fatalf("unexpected promo %+v", promo)
	}
	if promo.UsageLimit == nil || *promo.UsageLimit != 100 || promo.UsageCount != 4 {
		t.Fatalf("unexpected usage fields %+v", promo)
	}
	if promo.MinOrderAmount == nil || !promo.MinOrderAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected minimum %v", promo.MinOrderAmount)
	}
	if promo.StartsAt.Location() != time.UTC || !promo.StartsAt.Equal(starts) {
		t.Fatalf("expected UTC start got %v", promo.StartsAt)
	}
	if !promo.EndsAt.IsZero() || promo.MaxDiscount != nil || promo.PerCustomerLimit != nil {
		t.Fatalf("expected open-ended promo %+v", promo)
	}
}

func TestGiftCardDocumentRoundTrip(t *testing.T) {
	card := domain.GiftCard{
		ID:             "gc_1",
		Code:           "FFGC-1",
		InitialBalance: decimal.RequireFromString("50"),
		Balance:        decimal.RequireFromString("12.34"),
		Currency:       "USD",
		Status:         domain.GiftCardStatusVoid,
	}
	doc := newGiftCardDocument(card)
	if doc.BalanceCents != 1234 || doc.InitialBalanceCents != 5000 {
		t.Fatalf("unexpected cents %+v", doc)
	}
	back := doc.toDomain("gc_1")
	if !back.Balance.Equal(card.Balance) || back.Status != domain.GiftCardStatusVoid {
		t.Fatalf("unexpected card %+v", back)
	}
}

func TestToCentsRoundsHalfAwayFromZero(t *testing.T) {
	cases := map[string]int64{
		"1.005":  101,
		"-1.005": -101,
		"0.1":    10,
		"19.99":  1999,
	}
	for in, want := range cases {
		if got := toCents(decimal.RequireFromString(in)); got != want {
			t.Fatalf("toCents(%s) = %d want %d", in, got, want)
		}
	}
}
