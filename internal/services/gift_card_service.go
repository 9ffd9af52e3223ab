package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories"
)

const maxGiftCardNoteLength = 500

// GiftCardServiceDeps bundles the collaborators of the gift card ledger.
type GiftCardServiceDeps struct {
	GiftCards   repositories.GiftCardRepository
	Ledger      LedgerPublisher
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type giftCardService struct {
	repo   repositories.GiftCardRepository
	ledger LedgerPublisher
	clock  func() time.Time
	logger eventLogger
	newID  func() string
}

// NewGiftCardService constructs a GiftCardService.
func NewGiftCardService(deps GiftCardServiceDeps) (GiftCardService, error) {
	if deps.GiftCards == nil {
		return nil, ErrGiftCardRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &giftCardService{
		repo:   deps.GiftCards,
		ledger: deps.Ledger,
		clock:  func() time.Time { return clock().UTC() },
		logger: deps.Logger,
		newID:  newID,
	}, nil
}

func (s *giftCardService) Get(ctx context.Context, cardID string) (GiftCard, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return GiftCard{}, fmt.Errorf("%w: card id is required", ErrGiftCardInvalidInput)
	}
	card, err := s.repo.Get(ctx, cardID)
	if err != nil {
		return GiftCard{}, s.mapRepoError(err)
	}
	return card, nil
}

// AdjustBalance applies the delta as given. The store refuses results below
// zero; no clamping happens here.
func (s *giftCardService) AdjustBalance(ctx context.Context, cmd AdjustGiftCardCommand) (GiftCard, error) {
	cardID, actor, err := validateGiftCardMutation(cmd.CardID, cmd.Actor)
	if err != nil {
		return GiftCard{}, err
	}
	amount := domain.RoundMoney(cmd.Amount)
	if amount.IsZero() {
		return GiftCard{}, fmt.Errorf("%w: amount must be non-zero", ErrGiftCardInvalidInput)
	}
	note := normalizeGiftCardNote(cmd.Note)

	var entry *domain.GiftCardTransaction
	card, err := s.repo.Mutate(ctx, cardID, func(card *domain.GiftCard) (*domain.GiftCardTransaction, error) {
		if card.Status != domain.GiftCardStatusActive {
			return nil, ErrGiftCardNotActive
		}
		card.Balance = domain.RoundMoney(card.Balance.Add(amount))
		entry = s.entry(card, domain.GiftCardTxAdjustment, amount, note, actor)
		return entry, nil
	})
	if err != nil {
		return GiftCard{}, s.mapRepoError(err)
	}

	s.recorded(ctx, LedgerEventGiftCardAdjusted, card, entry)
	return card, nil
}

// Void is idempotent: voiding a void card writes nothing.
func (s *giftCardService) Void(ctx context.Context, cmd VoidGiftCardCommand) (GiftCard, error) {
	cardID, actor, err := validateGiftCardMutation(cmd.CardID, cmd.Actor)
	if err != nil {
		return GiftCard{}, err
	}
	note := normalizeGiftCardNote(cmd.Note)

	var entry *domain.GiftCardTransaction
	card, err := s.repo.Mutate(ctx, cardID, func(card *domain.GiftCard) (*domain.GiftCardTransaction, error) {
		entry = nil
		if card.Status == domain.GiftCardStatusVoid {
			return nil, nil
		}
		card.Status = domain.GiftCardStatusVoid
		entry = s.entry(card, domain.GiftCardTxVoid, decimal.Zero, note, actor)
		return entry, nil
	})
	if err != nil {
		return GiftCard{}, s.mapRepoError(err)
	}

	if entry != nil {
		s.recorded(ctx, LedgerEventGiftCardVoided, card, entry)
	}
	return card, nil
}

func (s *giftCardService) Reactivate(ctx context.Context, cmd ReactivateGiftCardCommand) (GiftCard, error) {
	cardID, actor, err := validateGiftCardMutation(cmd.CardID, cmd.Actor)
	if err != nil {
		return GiftCard{}, err
	}
	balance := domain.RoundMoney(cmd.Balance)
	if !balance.IsPositive() {
		return GiftCard{}, ErrGiftCardInvalidBalance
	}
	note := normalizeGiftCardNote(cmd.Note)

	var entry *domain.GiftCardTransaction
	card, err := s.repo.Mutate(ctx, cardID, func(card *domain.GiftCard) (*domain.GiftCardTransaction, error) {
		delta := balance.Sub(card.Balance)
		card.Status = domain.GiftCardStatusActive
		card.Balance = balance
		entry = s.entry(card, domain.GiftCardTxReactivate, delta, note, actor)
		return entry, nil
	})
	if err != nil {
		return GiftCard{}, s.mapRepoError(err)
	}

	s.recorded(ctx, LedgerEventGiftCardReactivated, card, entry)
	return card, nil
}

func (s *giftCardService) entry(card *domain.GiftCard, kind domain.GiftCardTransactionType, amount decimal.Decimal, note string, actor GiftCardActor) *domain.GiftCardTransaction {
	now := s.clock()
	card.UpdatedAt = now
	return &domain.GiftCardTransaction{
		ID:           s.newID(),
		CardID:       card.ID,
		Type:         kind,
		Amount:       amount,
		BalanceAfter: card.Balance,
		Note:         note,
		Actor:        actor,
		CreatedAt:    now,
	}
}

func (s *giftCardService) recorded(ctx context.Context, eventType string, card GiftCard, entry *domain.GiftCardTransaction) {
	if entry == nil {
		return
	}
	s.logger.log(ctx, eventType, map[string]any{
		"cardId":        card.ID,
		"transactionId": entry.ID,
		"amount":        entry.Amount.StringFixed(2),
		"balance":       card.Balance.StringFixed(2),
		"actorId":       entry.Actor.ID,
	})
	if s.ledger == nil {
		return
	}
	event := LedgerEvent{
		EventID:    entry.ID,
		Type:       eventType,
		SubjectID:  card.ID,
		Amount:     entry.Amount.StringFixed(2),
		Balance:    card.Balance.StringFixed(2),
		ActorID:    entry.Actor.ID,
		ActorName:  entry.Actor.Name,
		Note:       entry.Note,
		OccurredAt: entry.CreatedAt,
	}
	if _, err := s.ledger.PublishLedgerEvent(ctx, event); err != nil {
		s.logger.log(ctx, "ledger.publish_failed", map[string]any{"type": eventType, "cardId": card.ID, "error": err.Error()})
	}
}

func (s *giftCardService) mapRepoError(err error) error {
	switch {
	case errors.Is(err, ErrGiftCardNotActive):
		return ErrGiftCardNotActive
	case repositories.IsNotFound(err):
		return ErrGiftCardNotFound
	case errors.Is(err, repositories.ErrInsufficientBalance):
		return ErrGiftCardInsufficientBalance
	}
	return fmt.Errorf("%w: %v", ErrGiftCardUnavailable, err)
}

func validateGiftCardMutation(cardID string, actor GiftCardActor) (string, GiftCardActor, error) {
	actor.ID = strings.TrimSpace(actor.ID)
	actor.Name = strings.TrimSpace(actor.Name)
	if actor.ID == "" || actor.Name == "" {
		return "", actor, ErrGiftCardActorRequired
	}
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return "", actor, fmt.Errorf("%w: card id is required", ErrGiftCardInvalidInput)
	}
	return cardID, actor, nil
}

func normalizeGiftCardNote(note string) string {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) <= maxGiftCardNoteLength {
		return note
	}
	runes := []rune(note)
	return strings.TrimSpace(string(runes[:maxGiftCardNoteLength]))
}
