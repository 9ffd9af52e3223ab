package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories"
)

type stubGiftCardRepository struct {
	card    domain.GiftCard
	err     error
	entries []domain.GiftCardTransaction
	writes  int
}

func (s *stubGiftCardRepository) Get(_ context.Context, cardID string) (domain.GiftCard, error) {
	if s.err != nil {
		return domain.GiftCard{}, s.err
	}
	if cardID != s.card.ID {
		return domain.GiftCard{}, &stubRepoError{notFound: true}
	}
	return s.card, nil
}

func (s *stubGiftCardRepository) Mutate(_ context.Context, cardID string, mutate repositories.GiftCardMutator) (domain.GiftCard, error) {
	if s.err != nil {
		return domain.GiftCard{}, s.err
	}
	if cardID != s.card.ID {
		return domain.GiftCard{}, &stubRepoError{notFound: true}
	}
	working := s.card
	entry, err := mutate(&working)
	if err != nil {
		return domain.GiftCard{}, err
	}
	if entry == nil {
		return s.card, nil
	}
	if working.Balance.IsNegative() {
		return domain.GiftCard{}, &stubRepoError{conflict: true, err: repositories.ErrInsufficientBalance}
	}
	s.card = working
	s.entries = append(s.entries, *entry)
	s.writes++
	return s.card, nil
}

var (
	giftCardNow   = time.Date(2025, time.April, 2, 15, 30, 0, 0, time.UTC)
	giftCardActor = GiftCardActor{ID: "staff-1", Name: "Dana Ops"}
)

func newTestGiftCardService(t *testing.T, repo *stubGiftCardRepository, ledger *stubLedgerPublisher) GiftCardService {
	t.Helper()
	deps := GiftCardServiceDeps{
		GiftCards:   repo,
		Clock:       func() time.Time { return giftCardNow },
		IDGenerator: func() string { return "tx-1" },
	}
	if ledger != nil {
		deps.Ledger = ledger
	}
	svc, err := NewGiftCardService(deps)
	if err != nil {
		t.Fatalf("NewGiftCardService: %v", err)
	}
	return svc
}

func activeCard(balance string) domain.GiftCard {
	return domain.GiftCard{
		ID:             "gc_1",
		Code:           "FFGC-1234",
		InitialBalance: dec("50"),
		Balance:        dec(balance),
		Currency:       "USD",
		Status:         domain.GiftCardStatusActive,
	}
}

func TestGiftCardService_AdjustBalance(t *testing.T) {
	repo := &stubGiftCardRepository{card: activeCard("50")}
	ledger := &stubLedgerPublisher{}
	svc := newTestGiftCardService(t, repo, ledger)

	card, err := svc.AdjustBalance(context.Background(), AdjustGiftCardCommand{
		CardID: "gc_1",
		Amount: dec("-20.005"),
		Note:   "  goodwill correction  ",
		Actor:  giftCardActor,
	})
	if err != nil {
		t.Fatalf("AdjustBalance returned error: %v", err)
	}
	if !card.Balance.Equal(dec("29.99")) {
		t.Fatalf("expected balance 29.99 got %s", card.Balance)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected one ledger entry got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Type != domain.GiftCardTxAdjustment || !entry.Amount.Equal(dec("-20.01")) || entry.Note != "goodwill correction" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Actor != giftCardActor || !entry.CreatedAt.Equal(giftCardNow) {
		t.Fatalf("unexpected entry audit fields %+v", entry)
	}
	if len(ledger.events) != 1 || ledger.events[0].Type != LedgerEventGiftCardAdjusted || ledger.events[0].Balance != "29.99" {
		t.Fatalf("unexpected ledger events %+v", ledger.events)
	}
}

func TestGiftCardService_AdjustBalance_Overdraw(t *testing.T) {
	repo := &stubGiftCardRepository{card: activeCard("10")}
	svc := newTestGiftCardService(t, repo, nil)

	_, err := svc.AdjustBalance(context.Background(), AdjustGiftCardCommand{
		CardID: "gc_1",
		Amount: dec("-10.01"),
		Actor:  giftCardActor,
	})
	if !errors.Is(err, ErrGiftCardInsufficientBalance) {
		t.Fatalf("expected ErrGiftCardInsufficientBalance got %v", err)
	}
	if repo.writes != 0 || !repo.card.Balance.Equal(dec("10")) {
		t.Fatalf("card must be unchanged")
	}
}

func TestGiftCardService_AdjustBalance_NoteCapped(t *testing.T) {
	repo := &stubGiftCardRepository{card: activeCard("10")}
	svc := newTestGiftCardService(t, repo, nil)

	if _, err := svc.AdjustBalance(context.Background(), AdjustGiftCardCommand{
		CardID: "gc_1",
		Amount: dec("5"),
		Note:   strings.Repeat("n", 700),
		Actor:  giftCardActor,
	}); err != nil {
		t.Fatalf("AdjustBalance returned error: %v", err)
	}
	if got := len(repo.entries[0].Note); got != 500 {
		t.Fatalf("expected note capped at 500 got %d", got)
	}
}

func TestGiftCardService_AdjustBalance_VoidCard(t *testing.T) {
	card := activeCard("10")
	card.Status = domain.GiftCardStatusVoid
	svc := newTestGiftCardService(t, &stubGiftCardRepository{card: card}, nil)

	_, err := svc.AdjustBalance(context.Background(), AdjustGiftCardCommand{CardID: "gc_1", Amount: dec("5"), Actor: giftCardActor})
	if !errors.Is(err, ErrGiftCardNotActive) {
		t.Fatalf("expected ErrGiftCardNotActive got %v", err)
	}
}

func TestGiftCardService_RequiresActor(t *testing.T) {
	repo := &stubGiftCardRepository{card: activeCard("10")}
	svc := newTestGiftCardService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.AdjustBalance(ctx, AdjustGiftCardCommand{CardID: "gc_1", Amount: dec("1"), Actor: GiftCardActor{ID: "staff-1"}}); !errors.Is(err, ErrGiftCardActorRequired) {
		t.Fatalf("adjust: expected ErrGiftCardActorRequired got %v", err)
	}
	if _, err := svc.Void(ctx, VoidGiftCardCommand{CardID: "gc_1", Actor: GiftCardActor{Name: "Dana"}}); !errors.Is(err, ErrGiftCardActorRequired) {
		t.Fatalf("void: expected ErrGiftCardActorRequired got %v", err)
	}
	if _, err := svc.Reactivate(ctx, ReactivateGiftCardCommand{CardID: "gc_1", Balance: dec("5")}); !errors.Is(err, ErrGiftCardActorRequired) {
		t.Fatalf("reactivate: expected ErrGiftCardActorRequired got %v", err)
	}
	if repo.writes != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestGiftCardService_Void_Idempotent(t *testing.T) {
	repo := &stubGiftCardRepository{card: activeCard("25")}
	ledger := &stubLedgerPublisher{}
	svc := newTestGiftCardService(t, repo, ledger)
	cmd := VoidGiftCardCommand{CardID: "gc_1", Actor: giftCardActor}

	first, err := svc.Void(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first Void: %v", err)
	}
	second, err := svc.Void(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second Void: %v", err)
	}
	if first.Status != domain.GiftCardStatusVoid || second.Status != domain.GiftCardStatusVoid {
		t.Fatalf("expected void status")
	}
	if repo.writes != 1 || len(ledger.events) != 1 {
		t.Fatalf("expected a single write and event got writes=%d events=%d", repo.writes, len(ledger.events))
	}
	if !second.Balance.Equal(dec("25")) {
		t.Fatalf("void must keep balance got %s", second.Balance)
	}
}

func TestGiftCardService_Reactivate(t *testing.T) {
	card := activeCard("12")
	card.Status = domain.GiftCardStatusVoid
	repo := &stubGiftCardRepository{card: card}
	svc := newTestGiftCardService(t, repo, nil)

	if _, err := svc.Reactivate(context.Background(), ReactivateGiftCardCommand{CardID: "gc_1", Balance: dec("0"), Actor: giftCardActor}); !errors.Is(err, ErrGiftCardInvalidBalance) {
		t.Fatalf("expected ErrGiftCardInvalidBalance got %v", err)
	}

	updated, err := svc.Reactivate(context.Background(), ReactivateGiftCardCommand{CardID: "gc_1", Balance: dec("40"), Actor: giftCardActor})
	if err != nil {
		t.Fatalf("Reactivate returned error: %v", err)
	}
	if updated.Status != domain.GiftCardStatusActive || !updated.Balance.Equal(dec("40")) {
		t.Fatalf("unexpected card %+v", updated)
	}
	if entry := repo.entries[0]; entry.Type != domain.GiftCardTxReactivate || !entry.Amount.Equal(dec("28")) {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestGiftCardService_Get(t *testing.T) {
	svc := newTestGiftCardService(t, &stubGiftCardRepository{card: activeCard("10")}, nil)

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrGiftCardNotFound) {
		t.Fatalf("expected ErrGiftCardNotFound got %v", err)
	}
	card, err := svc.Get(context.Background(), " gc_1 ")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if card.Code != "FFGC-1234" {
		t.Fatalf("unexpected card %+v", card)
	}
}

func TestGiftCardService_Unavailable(t *testing.T) {
	svc := newTestGiftCardService(t, &stubGiftCardRepository{err: &stubRepoError{unavailable: true}}, nil)
	if _, err := svc.Get(context.Background(), "gc_1"); !errors.Is(err, ErrGiftCardUnavailable) {
		t.Fatalf("expected ErrGiftCardUnavailable got %v", err)
	}
}

func TestGiftCardService_AdjustBalance_StoreConflictIsNotOverdraw(t *testing.T) {
	cases := map[string]error{
		"contention":        &stubRepoError{unavailable: true},
		"duplicate ledger":  &stubRepoError{conflict: true},
		"untyped store err": errors.New("boom"),
	}
	for name, repoErr := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &stubGiftCardRepository{card: activeCard("10"), err: repoErr}
			svc := newTestGiftCardService(t, repo, nil)

			_, err := svc.AdjustBalance(context.Background(), AdjustGiftCardCommand{
				CardID: "gc_1",
				Amount: dec("5"),
				Actor:  giftCardActor,
			})
			if errors.Is(err, ErrGiftCardInsufficientBalance) {
				t.Fatalf("credit must never report insufficient balance: %v", err)
			}
			if !errors.Is(err, ErrGiftCardUnavailable) {
				t.Fatalf("expected ErrGiftCardUnavailable got %v", err)
			}
		})
	}
}
