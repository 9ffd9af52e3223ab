package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
)

// Type aliases expose domain models to callers of the services package.
type (
	PromoCode             = domain.PromoCode
	PromoValidationInput  = domain.PromoValidationInput
	PromoValidationResult = domain.PromoValidationResult
	PromoApplication      = domain.PromoApplication
	CartItem              = domain.CartItem
	RewardSKU             = domain.RewardSKU
	GiftCard              = domain.GiftCard
	GiftCardActor         = domain.GiftCardActor
	TaxAddress            = domain.TaxAddress
	TaxResult             = domain.TaxResult
	Shipment              = domain.Shipment
	ShipmentUpdate        = domain.ShipmentUpdate
	ShipmentFilter        = domain.ShipmentFilter
	ShipmentPage          = domain.ShipmentPage
)

// PromotionService validates, previews and redeems promo codes.
type PromotionService interface {
	Validate(ctx context.Context, input PromoValidationInput) (PromoValidationResult, error)
	Apply(ctx context.Context, cmd ApplyPromoCommand) (ApplyPromoResult, error)
	Redeem(ctx context.Context, cmd RedeemPromoCommand) (PromoValidationResult, error)
}

// ApplyPromoCommand previews a code against a cart including shipping.
type ApplyPromoCommand struct {
	Input        PromoValidationInput
	ShippingCost decimal.Decimal
}

// ApplyPromoResult carries the validation outcome and, when valid, the new totals.
type ApplyPromoResult struct {
	Validation  PromoValidationResult
	Application *PromoApplication
}

// RedeemPromoCommand consumes one use of a code for a placed order.
type RedeemPromoCommand struct {
	Input   PromoValidationInput
	OrderID string
}

// GiftCardService performs audited gift card ledger operations.
type GiftCardService interface {
	Get(ctx context.Context, cardID string) (GiftCard, error)
	AdjustBalance(ctx context.Context, cmd AdjustGiftCardCommand) (GiftCard, error)
	Void(ctx context.Context, cmd VoidGiftCardCommand) (GiftCard, error)
	Reactivate(ctx context.Context, cmd ReactivateGiftCardCommand) (GiftCard, error)
}

// AdjustGiftCardCommand applies a signed delta to a card balance.
type AdjustGiftCardCommand struct {
	CardID string
	Amount decimal.Decimal
	Note   string
	Actor  GiftCardActor
}

// VoidGiftCardCommand marks a card unusable.
type VoidGiftCardCommand struct {
	CardID string
	Note   string
	Actor  GiftCardActor
}

// ReactivateGiftCardCommand re-enables a card with a fresh balance.
type ReactivateGiftCardCommand struct {
	CardID  string
	Balance decimal.Decimal
	Note    string
	Actor   GiftCardActor
}

// TaxService shapes tax requests and calls the oracle.
type TaxService interface {
	Calculate(ctx context.Context, cmd CalculateTaxCommand) (TaxResult, error)
}

// TaxAddressInput is an address as typed by a shopper.
type TaxAddressInput struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// TaxLineItemInput is a cart line forwarded to the oracle.
type TaxLineItemInput struct {
	ID             string
	Quantity       int
	UnitPrice      decimal.Decimal
	Discount       decimal.Decimal
	ProductTaxCode string
}

// CalculateTaxCommand is a checkout tax calculation.
type CalculateTaxCommand struct {
	OrderID     string
	ToAddress   TaxAddressInput
	FromAddress *TaxAddressInput
	Amount      decimal.Decimal
	Shipping    decimal.Decimal
	LineItems   []TaxLineItemInput
}

// TaxOracle is the external tax rate service.
type TaxOracle interface {
	// Calculate posts payload. On failure the returned response still carries
	// whatever status code and body were received.
	Calculate(ctx context.Context, payload TaxPayload) (TaxOracleResponse, error)
}

// TaxOracleResponse is the oracle's answer plus the raw exchange for logging.
type TaxOracleResponse struct {
	Result     TaxResult
	StatusCode int
	Body       string
}

// ShipmentHistoryService maintains the carrier agnostic shipment trail.
type ShipmentHistoryService interface {
	Record(ctx context.Context, shipment Shipment) (Shipment, error)
	UpdateStatus(ctx context.Context, id string, status domain.ShipmentStatus, updates *ShipmentUpdate) (*Shipment, error)
	List(ctx context.Context, filter ShipmentFilter) (ShipmentPage, error)
}

// LedgerEvent is published for every money-affecting side effect that
// finance reconciles later.
type LedgerEvent struct {
	EventID    string         `json:"eventId"`
	Type       string         `json:"type"`
	SubjectID  string         `json:"subjectId"`
	Amount     string         `json:"amount,omitempty"`
	Balance    string         `json:"balance,omitempty"`
	ActorID    string         `json:"actorId,omitempty"`
	ActorName  string         `json:"actorName,omitempty"`
	Note       string         `json:"note,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Details    map[string]any `json:"details,omitempty"`
}

// Ledger event types.
const (
	LedgerEventGiftCardAdjusted    = "gift_card.adjusted"
	LedgerEventGiftCardVoided      = "gift_card.voided"
	LedgerEventGiftCardReactivated = "gift_card.reactivated"
	LedgerEventPromoRedeemed       = "promo_code.redeemed"
	LedgerEventTaxFallback         = "tax.fallback"
)

// LedgerPublisher delivers ledger events to the reconciliation queue.
type LedgerPublisher interface {
	PublishLedgerEvent(ctx context.Context, event LedgerEvent) (string, error)
}

type eventLogger func(context.Context, string, map[string]any)

func (l eventLogger) log(ctx context.Context, event string, fields map[string]any) {
	if l != nil {
		l(ctx, event, fields)
	}
}
