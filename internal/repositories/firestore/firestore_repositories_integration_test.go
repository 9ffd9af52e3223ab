//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	pconfig "github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/config"
	pfirestore "github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/firestore"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func startEmulator(t *testing.T) *pfirestore.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        firestoreEmulatorImage,
			ExposedPorts: []string{"8080/tcp"},
			Cmd:          []string{"gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet"},
			WaitingFor:   wait.ForLog("Dev App Server is now running").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("firestore emulator not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.PortEndpoint(ctx, "8080/tcp", "")
	if err != nil {
		t.Fatalf("emulator endpoint: %v", err)
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    fmt.Sprintf("filtersfast-test-%d", time.Now().UnixNano()),
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func seed(t *testing.T, provider *pfirestore.Provider, collection, id string, doc any) {
	t.Helper()
	client, err := provider.Client(context.Background())
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := client.Collection(collection).Doc(id).Set(context.Background(), doc); err != nil {
		t.Fatalf("seed %s/%s: %v", collection, id, err)
	}
}

func TestPromoCodeRepositoryRedeemIntegration(t *testing.T) {
	provider := startEmulator(t)
	limit := int64(3)
	seed(t, provider, promoCodesCollection, "SPRING", promoCodeDocument{
		Code:          "SPRING",
		DiscountType:  "fixed",
		DiscountValue: 5,
		UsageLimit:    &limit,
		Active:        true,
	})

	repo, err := NewPromoCodeRepository(provider)
	if err != nil {
		t.Fatalf("NewPromoCodeRepository: %v", err)
	}
	guard := func(promo domain.PromoCode, _ domain.CustomerPromoStats) (decimal.Decimal, error) {
		if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
			return decimal.Zero, errors.New("limit reached")
		}
		return decimal.NewFromInt(5), nil
	}

	ctx := context.Background()
	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orderID := fmt.Sprintf("order-%d", i)
			_, err := repo.Redeem(ctx, domain.PromoRedemption{
				Code:       "spring",
				OrderID:    orderID,
				CustomerID: "cust-1",
				RedeemedAt: time.Now(),
			}, guard)
			if err == nil {
				mu.Lock()
				succeeded = append(succeeded, orderID)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if len(succeeded) != int(limit) {
		t.Fatalf("expected %d redemptions got %d", limit, len(succeeded))
	}
	promo, err := repo.FindByCode(ctx, "SPRING")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if promo.UsageCount != int(limit) {
		t.Fatalf("expected usage count %d got %d", limit, promo.UsageCount)
	}

	history, err := NewCustomerHistoryRepository(provider)
	if err != nil {
		t.Fatalf("NewCustomerHistoryRepository: %v", err)
	}
	stats, err := history.PromoStats(ctx, "SPRING", "cust-1")
	if err != nil {
		t.Fatalf("PromoStats: %v", err)
	}
	if stats.Redemptions != int(limit) || stats.HasPriorOrders {
		t.Fatalf("unexpected stats %+v", stats)
	}

	_, err = repo.Redeem(ctx, domain.PromoRedemption{Code: "SPRING", OrderID: succeeded[0]}, guard)
	if !repositories.IsConflict(err) || !errors.Is(err, repositories.ErrAlreadyRedeemed) {
		t.Fatalf("expected already-redeemed conflict for repeated order got %v", err)
	}
}

func TestGiftCardRepositoryMutateIntegration(t *testing.T) {
	provider := startEmulator(t)
	seed(t, provider, giftCardsCollection, "gc_1", giftCardDocument{
		Code:                "FFGC-1",
		InitialBalanceCents: 2500,
		BalanceCents:        2500,
		Currency:            "USD",
		Status:              "active",
	})
	repo, err := NewGiftCardRepository(provider)
	if err != nil {
		t.Fatalf("NewGiftCardRepository: %v", err)
	}
	ctx := context.Background()

	debit := func(amount string) repositories.GiftCardMutator {
		return func(card *domain.GiftCard) (*domain.GiftCardTransaction, error) {
			delta := decimal.RequireFromString(amount)
			card.Balance = card.Balance.Add(delta)
			return &domain.GiftCardTransaction{
				ID:           "tx-" + amount,
				Type:         domain.GiftCardTxAdjustment,
				Amount:       delta,
				BalanceAfter: card.Balance,
				Actor:        domain.GiftCardActor{ID: "staff-1", Name: "Dana"},
				CreatedAt:    time.Now().UTC(),
			}, nil
		}
	}

	card, err := repo.Mutate(ctx, "gc_1", debit("-10"))
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if !card.Balance.Equal(decimal.RequireFromString("15")) {
		t.Fatalf("expected balance 15 got %s", card.Balance)
	}

	_, err = repo.Mutate(ctx, "gc_1", debit("-20"))
	if !repositories.IsConflict(err) || !errors.Is(err, repositories.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient-balance conflict for overdraw got %v", err)
	}

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	entries, err := client.Collection(giftCardsCollection).Doc("gc_1").Collection(transactionsCollection).
		OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry got %d", len(entries))
	}

	if _, err := repo.Get(ctx, "missing"); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found got %v", err)
	}
}
