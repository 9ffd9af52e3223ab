package services

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
	err         error
}

func (e *stubRepoError) Error() string       { return "stub repository error" }
func (e *stubRepoError) Unwrap() error       { return e.err }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubPromoCodeRepository struct {
	promo     domain.PromoCode
	stats     domain.CustomerPromoStats
	err       error
	redeemErr error
	lastCode  string
	redeemed  []domain.PromoRedemption
}

func (s *stubPromoCodeRepository) FindByCode(_ context.Context, code string) (domain.PromoCode, error) {
	s.lastCode = code
	if s.err != nil {
		return domain.PromoCode{}, s.err
	}
	return s.promo, nil
}

func (s *stubPromoCodeRepository) Redeem(_ context.Context, redemption domain.PromoRedemption, guard repositories.RedemptionGuard) (domain.PromoCode, error) {
	s.lastCode = redemption.Code
	if s.redeemErr != nil {
		return domain.PromoCode{}, s.redeemErr
	}
	for _, existing := range s.redeemed {
		if existing.OrderID == redemption.OrderID {
			return domain.PromoCode{}, &stubRepoError{conflict: true, err: repositories.ErrAlreadyRedeemed}
		}
	}
	amount, err := guard(s.promo, s.stats)
	if err != nil {
		return domain.PromoCode{}, err
	}
	s.promo.UsageCount++
	redemption.DiscountAmount = amount
	s.redeemed = append(s.redeemed, redemption)
	return s.promo, nil
}

type stubCustomerHistory struct {
	stats domain.CustomerPromoStats
	err   error
	calls int
}

func (s *stubCustomerHistory) PromoStats(context.Context, string, string) (domain.CustomerPromoStats, error) {
	s.calls++
	if s.err != nil {
		return domain.CustomerPromoStats{}, s.err
	}
	return s.stats, nil
}

type stubLedgerPublisher struct {
	mu     sync.Mutex
	events []LedgerEvent
	err    error
}

func (s *stubLedgerPublisher) PublishLedgerEvent(_ context.Context, event LedgerEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if s.err != nil {
		return "", s.err
	}
	return "msg-" + event.EventID, nil
}

type recordedEvent struct {
	name   string
	fields map[string]any
}

type stubEventLog struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (l *stubEventLog) log(_ context.Context, name string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{name: name, fields: fields})
}

func (l *stubEventLog) has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.name == name {
			return true
		}
	}
	return false
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func intPtr(v int) *int {
	return &v
}
