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
	giftCardsCollection    = "giftCards"
	transactionsCollection = "transactions"
)

type giftCardDocument struct {
	Code                string    `firestore:"code"`
	InitialBalanceCents int64     `firestore:"initialBalanceCents"`
	BalanceCents        int64     `firestore:"balanceCents"`
	Currency            string    `firestore:"currency"`
	Status              string    `firestore:"status"`
	RecipientEmail      string    `firestore:"recipientEmail,omitempty"`
	CreatedAt           time.Time `firestore:"createdAt"`
	UpdatedAt           time.Time `firestore:"updatedAt"`
}

type giftCardTransactionDocument struct {
	Type              string    `firestore:"type"`
	AmountCents       int64     `firestore:"amountCents"`
	BalanceAfterCents int64     `firestore:"balanceAfterCents"`
	Note              string    `firestore:"note,omitempty"`
	ActorID           string    `firestore:"actorId"`
	ActorName         string    `firestore:"actorName"`
	CreatedAt         time.Time `firestore:"createdAt"`
}

func (d giftCardDocument) toDomain(id string) domain.GiftCard {
	status := domain.GiftCardStatus(strings.ToLower(strings.TrimSpace(d.Status)))
	if status == "" {
		status = domain.GiftCardStatusActive
	}
	return domain.GiftCard{
		ID:             id,
		Code:           d.Code,
		InitialBalance: fromCents(d.InitialBalanceCents),
		Balance:        fromCents(d.BalanceCents),
		Currency:       d.Currency,
		Status:         status,
		RecipientEmail: d.RecipientEmail,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func newGiftCardDocument(card domain.GiftCard) giftCardDocument {
	return giftCardDocument{
		Code:                card.Code,
		InitialBalanceCents: toCents(card.InitialBalance),
		BalanceCents:        toCents(card.Balance),
		Currency:            card.Currency,
		Status:              string(card.Status),
		RecipientEmail:      card.RecipientEmail,
		CreatedAt:           card.CreatedAt.UTC(),
		UpdatedAt:           card.UpdatedAt.UTC(),
	}
}

func newGiftCardTransactionDocument(entry domain.GiftCardTransaction) giftCardTransactionDocument {
	return giftCardTransactionDocument{
		Type:              string(entry.Type),
		AmountCents:       toCents(entry.Amount),
		BalanceAfterCents: toCents(entry.BalanceAfter),
		Note:              entry.Note,
		ActorID:           entry.Actor.ID,
		ActorName:         entry.Actor.Name,
		CreatedAt:         entry.CreatedAt.UTC(),
	}
}

// GiftCardRepository implements repositories.GiftCardRepository. Ledger
// entries live in giftCards/{id}/transactions.
type GiftCardRepository struct {
	provider *pfirestore.Provider
	cards    *pfirestore.Collection[giftCardDocument]
}

// NewGiftCardRepository constructs a Firestore-backed gift card repository.
func NewGiftCardRepository(provider *pfirestore.Provider) (*GiftCardRepository, error) {
	if provider == nil {
		return nil, errors.New("gift card repository requires firestore provider")
	}
	return &GiftCardRepository{
		provider: provider,
		cards:    pfirestore.NewCollection[giftCardDocument](provider, giftCardsCollection),
	}, nil
}

func (r *GiftCardRepository) Get(ctx context.Context, cardID string) (domain.GiftCard, error) {
	if r == nil || r.provider == nil {
		return domain.GiftCard{}, errors.New("gift card repository not initialised")
	}
	id := strings.TrimSpace(cardID)
	if id == "" {
		return domain.GiftCard{}, pfirestore.NotFound("gift_cards.get", errors.New("card id is empty"))
	}
	doc, err := r.cards.Get(ctx, id)
	if err != nil {
		return domain.GiftCard{}, err
	}
	return doc.toDomain(id), nil
}

// Mutate applies mutate to the stored card and appends its ledger entry in
// one transaction. A negative resulting balance aborts with a conflict.
func (r *GiftCardRepository) Mutate(ctx context.Context, cardID string, mutate repositories.GiftCardMutator) (domain.GiftCard, error) {
	if r == nil || r.provider == nil {
		return domain.GiftCard{}, errors.New("gift card repository not initialised")
	}
	if mutate == nil {
		return domain.GiftCard{}, errors.New("gift card mutate: mutator is required")
	}
	id := strings.TrimSpace(cardID)
	if id == "" {
		return domain.GiftCard{}, pfirestore.NotFound("gift_cards.mutate", errors.New("card id is empty"))
	}

	var result domain.GiftCard
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.cards.Doc(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NotFound("gift_cards.mutate", fmt.Errorf("gift card %s not found", id))
			}
			return err
		}
		doc, err := pfirestore.Decode[giftCardDocument](snap)
		if err != nil {
			return err
		}

		card := doc.toDomain(id)
		entry, err := mutate(&card)
		if err != nil {
			return err
		}
		if entry == nil {
			result = doc.toDomain(id)
			return nil
		}
		if card.Balance.IsNegative() {
			return pfirestore.Conflict("gift_cards.mutate", fmt.Errorf("%w: card %s balance would be %s", repositories.ErrInsufficientBalance, id, card.Balance.StringFixed(2)))
		}

		if err := tx.Set(ref, newGiftCardDocument(card)); err != nil {
			return err
		}
		entryID := strings.TrimSpace(entry.ID)
		if entryID == "" {
			return errors.New("gift card mutate: ledger entry id is required")
		}
		entry.CardID = id
		if err := tx.Create(ref.Collection(transactionsCollection).Doc(entryID), newGiftCardTransactionDocument(*entry)); err != nil {
			return err
		}
		result = card
		return nil
	})
	if err != nil {
		return domain.GiftCard{}, pfirestore.WrapError("gift_cards.mutate", err)
	}
	return result, nil
}
