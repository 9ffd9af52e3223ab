package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	pfirestore "github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/firestore"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories"
)

const (
	promoCodesCollection  = "promoCodes"
	redemptionsCollection = "redemptions"
	ordersCollection      = "orders"
)

type promoCodeDocument struct {
	Code                 string     `firestore:"code"`
	Description          string     `firestore:"description,omitempty"`
	DiscountType         string     `firestore:"discountType"`
	DiscountValue        float64    `firestore:"discountValue"`
	MinOrderAmount       *float64   `firestore:"minOrderAmount,omitempty"`
	MaxDiscount          *float64   `firestore:"maxDiscount,omitempty"`
	StartsAt             *time.Time `firestore:"startsAt,omitempty"`
	EndsAt               *time.Time `firestore:"endsAt,omitempty"`
	UsageLimit           *int64     `firestore:"usageLimit,omitempty"`
	UsageCount           int64      `firestore:"usageCount"`
	PerCustomerLimit     *int64     `firestore:"perCustomerLimit,omitempty"`
	FirstTimeOnly        bool       `firestore:"firstTimeOnly"`
	FreeShipping         bool       `firestore:"freeShipping"`
	ApplicableProducts   []string   `firestore:"applicableProducts,omitempty"`
	ApplicableCategories []string   `firestore:"applicableCategories,omitempty"`
	Active               bool       `firestore:"active"`
	CreatedAt            time.Time  `firestore:"createdAt"`
	UpdatedAt            time.Time  `firestore:"updatedAt"`
}

type redemptionDocument struct {
	Code           string    `firestore:"code"`
	OrderID        string    `firestore:"orderId"`
	CustomerID     string    `firestore:"customerId,omitempty"`
	DiscountAmount float64   `firestore:"discountAmount"`
	RedeemedAt     time.Time `firestore:"redeemedAt"`
}

func (d promoCodeDocument) toDomain(id string) domain.PromoCode {
	promo := domain.PromoCode{
		ID:                   id,
		Code:                 strings.ToUpper(strings.TrimSpace(d.Code)),
		Description:          d.Description,
		DiscountType:         domain.PromoDiscountType(strings.ToLower(strings.TrimSpace(d.DiscountType))),
		DiscountValue:        domain.Money(d.DiscountValue),
		MinOrderAmount:       optionalDecimal(d.MinOrderAmount),
		MaxDiscount:          optionalDecimal(d.MaxDiscount),
		UsageLimit:           optionalInt(d.UsageLimit),
		UsageCount:           int(d.UsageCount),
		PerCustomerLimit:     optionalInt(d.PerCustomerLimit),
		FirstTimeOnly:        d.FirstTimeOnly,
		FreeShipping:         d.FreeShipping,
		ApplicableProducts:   d.ApplicableProducts,
		ApplicableCategories: d.ApplicableCategories,
		Active:               d.Active,
		CreatedAt:            d.CreatedAt.UTC(),
		UpdatedAt:            d.UpdatedAt.UTC(),
	}
	if promo.Code == "" {
		promo.Code = id
	}
	if d.StartsAt != nil {
		promo.StartsAt = d.StartsAt.UTC()
	}
	if d.EndsAt != nil {
		promo.EndsAt = d.EndsAt.UTC()
	}
	return promo
}

// PromoCodeRepository implements repositories.PromoCodeRepository. Documents
// are keyed by the upper-cased code.
type PromoCodeRepository struct {
	provider *pfirestore.Provider
	codes    *pfirestore.Collection[promoCodeDocument]
	now      func() time.Time
}

// NewPromoCodeRepository constructs a Firestore-backed promo code repository.
func NewPromoCodeRepository(provider *pfirestore.Provider) (*PromoCodeRepository, error) {
	if provider == nil {
		return nil, errors.New("promo code repository requires firestore provider")
	}
	return &PromoCodeRepository{
		provider: provider,
		codes:    pfirestore.NewCollection[promoCodeDocument](provider, promoCodesCollection),
		now:      time.Now,
	}, nil
}

func (r *PromoCodeRepository) FindByCode(ctx context.Context, code string) (domain.PromoCode, error) {
	if r == nil || r.provider == nil {
		return domain.PromoCode{}, errors.New("promo code repository not initialised")
	}
	id := normalizeCode(code)
	if id == "" {
		return domain.PromoCode{}, pfirestore.NotFound("promo_codes.find", errors.New("code is empty"))
	}
	doc, err := r.codes.Get(ctx, id)
	if err != nil {
		return domain.PromoCode{}, err
	}
	return doc.toDomain(id), nil
}

// Redeem re-reads the code and the customer's history inside one transaction
// so concurrent redemptions cannot overshoot the usage limit.
func (r *PromoCodeRepository) Redeem(ctx context.Context, redemption domain.PromoRedemption, guard repositories.RedemptionGuard) (domain.PromoCode, error) {
	if r == nil || r.provider == nil {
		return domain.PromoCode{}, errors.New("promo code repository not initialised")
	}
	if guard == nil {
		return domain.PromoCode{}, errors.New("promo code redeem: guard is required")
	}
	id := normalizeCode(redemption.Code)
	orderID := strings.TrimSpace(redemption.OrderID)
	if id == "" || orderID == "" {
		return domain.PromoCode{}, errors.New("promo code redeem: code and order id are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.PromoCode{}, err
	}
	now := redemption.RedeemedAt.UTC()
	if now.IsZero() {
		now = r.now().UTC()
	}

	var redeemed domain.PromoCode
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		promoRef := client.Collection(promoCodesCollection).Doc(id)
		snap, err := tx.Get(promoRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NotFound("promo_codes.redeem", fmt.Errorf("promo code %s not found", id))
			}
			return err
		}
		doc, err := pfirestore.Decode[promoCodeDocument](snap)
		if err != nil {
			return err
		}
		promo := doc.toDomain(id)

		redemptionRef := promoRef.Collection(redemptionsCollection).Doc(orderID)
		if _, err := tx.Get(redemptionRef); err == nil {
			return pfirestore.Conflict("promo_codes.redeem", fmt.Errorf("%w: order %s code %s", repositories.ErrAlreadyRedeemed, orderID, id))
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		stats, err := txCustomerStats(tx, client, promoRef, promo, redemption.CustomerID, orderID)
		if err != nil {
			return err
		}

		discount, err := guard(promo, stats)
		if err != nil {
			return err
		}

		if err := tx.Update(promoRef, []firestore.Update{
			{Path: "usageCount", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		if err := tx.Create(redemptionRef, redemptionDocument{
			Code:           id,
			OrderID:        orderID,
			CustomerID:     strings.TrimSpace(redemption.CustomerID),
			DiscountAmount: discount.InexactFloat64(),
			RedeemedAt:     now,
		}); err != nil {
			return err
		}

		promo.UsageCount++
		promo.UpdatedAt = now
		redeemed = promo
		return nil
	})
	if status.Code(err) == codes.AlreadyExists {
		// the redemption doc is the only document created here
		return domain.PromoCode{}, pfirestore.Conflict("promo_codes.redeem", fmt.Errorf("%w: order %s code %s", repositories.ErrAlreadyRedeemed, orderID, id))
	}
	if err != nil {
		return domain.PromoCode{}, pfirestore.WrapError("promo_codes.redeem", err)
	}
	return redeemed, nil
}

// txCustomerStats reads only what the promo's gates need. The order being
// placed is ignored when looking for prior orders.
func txCustomerStats(tx *firestore.Transaction, client *firestore.Client, promoRef *firestore.DocumentRef, promo domain.PromoCode, customerID, orderID string) (domain.CustomerPromoStats, error) {
	var stats domain.CustomerPromoStats
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return stats, nil
	}

	if promo.PerCustomerLimit != nil {
		query := promoRef.Collection(redemptionsCollection).
			Where("customerId", "==", customerID).
			Limit(*promo.PerCustomerLimit + 1)
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return stats, err
		}
		stats.Redemptions = len(docs)
	}

	if promo.FirstTimeOnly {
		query := client.Collection(ordersCollection).
			Where("customerId", "==", customerID).
			Limit(2)
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return stats, err
		}
		for _, doc := range docs {
			if doc.Ref.ID != orderID {
				stats.HasPriorOrders = true
				break
			}
		}
	}
	return stats, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
