package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	pfirestore "github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/firestore"
)

const redemptionCountAlias = "redemptions"

// CustomerHistoryRepository answers per-customer promo questions from the
// redemption subcollections and the orders collection.
type CustomerHistoryRepository struct {
	provider *pfirestore.Provider
}

// NewCustomerHistoryRepository constructs a Firestore-backed customer history reader.
func NewCustomerHistoryRepository(provider *pfirestore.Provider) (*CustomerHistoryRepository, error) {
	if provider == nil {
		return nil, errors.New("customer history repository requires firestore provider")
	}
	return &CustomerHistoryRepository{provider: provider}, nil
}

func (r *CustomerHistoryRepository) PromoStats(ctx context.Context, code, customerID string) (domain.CustomerPromoStats, error) {
	if r == nil || r.provider == nil {
		return domain.CustomerPromoStats{}, errors.New("customer history repository not initialised")
	}
	var stats domain.CustomerPromoStats
	customerID = strings.TrimSpace(customerID)
	id := normalizeCode(code)
	if customerID == "" || id == "" {
		return stats, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return stats, err
	}

	count, err := countRedemptions(ctx, client.Collection(promoCodesCollection).Doc(id), customerID)
	if err != nil {
		return stats, pfirestore.WrapError("customer_history.redemptions", err)
	}
	stats.Redemptions = count

	docs, err := client.Collection(ordersCollection).
		Where("customerId", "==", customerID).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return stats, pfirestore.WrapError("customer_history.orders", err)
	}
	stats.HasPriorOrders = len(docs) > 0
	return stats, nil
}

func countRedemptions(ctx context.Context, promoRef *firestore.DocumentRef, customerID string) (int, error) {
	query := promoRef.Collection(redemptionsCollection).
		Where("customerId", "==", customerID)
	result, err := query.NewAggregationQuery().
		WithCount(redemptionCountAlias).
		Get(ctx)
	if err != nil {
		return 0, err
	}
	raw, ok := result[redemptionCountAlias]
	if !ok {
		return 0, fmt.Errorf("aggregation result missing %q", redemptionCountAlias)
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected aggregation value %T", raw)
	}
	return int(value.GetIntegerValue()), nil
}
