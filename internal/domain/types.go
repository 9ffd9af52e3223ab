package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromoDiscountType selects how a promo code discount is computed.
type PromoDiscountType string

const (
	PromoDiscountPercentage   PromoDiscountType = "percentage"
	PromoDiscountFixed        PromoDiscountType = "fixed"
	PromoDiscountFreeShipping PromoDiscountType = "free_shipping"
)

// PromoErrorCode is the closed set of user-facing promo validation failures.
type PromoErrorCode string

const (
	PromoErrNotFound              PromoErrorCode = "NOT_FOUND"
	PromoErrInactive              PromoErrorCode = "INACTIVE"
	PromoErrNotStarted            PromoErrorCode = "NOT_STARTED"
	PromoErrExpired               PromoErrorCode = "EXPIRED"
	PromoErrUsageLimitReached     PromoErrorCode = "USAGE_LIMIT_REACHED"
	PromoErrCustomerLimitReached  PromoErrorCode = "CUSTOMER_LIMIT_REACHED"
	PromoErrFirstTimeOnly         PromoErrorCode = "FIRST_TIME_ONLY"
	PromoErrProductsNotApplicable PromoErrorCode = "PRODUCTS_NOT_APPLICABLE"
	PromoErrMinOrderNotMet        PromoErrorCode = "MIN_ORDER_NOT_MET"
)

// PromoCode is a discount rule. Zero StartsAt/EndsAt leave that side of the
// window open; nil limits are unlimited.
type PromoCode struct {
	ID                   string
	Code                 string
	Description          string
	DiscountType         PromoDiscountType
	DiscountValue        decimal.Decimal
	MinOrderAmount       *decimal.Decimal
	MaxDiscount          *decimal.Decimal
	StartsAt             time.Time
	EndsAt               time.Time
	UsageLimit           *int
	UsageCount           int
	PerCustomerLimit     *int
	FirstTimeOnly        bool
	FreeShipping         bool
	ApplicableProducts   []string
	ApplicableCategories []string
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasAllowList reports whether the promo is restricted to some products or categories.
func (p PromoCode) HasAllowList() bool {
	return len(p.ApplicableProducts) > 0 || len(p.ApplicableCategories) > 0
}

// WaivesShipping reports whether applying the promo zeroes shipping.
func (p PromoCode) WaivesShipping() bool {
	return p.FreeShipping || p.DiscountType == PromoDiscountFreeShipping
}

// CartItem is one cart line as seen by promo evaluation.
type CartItem struct {
	ProductID  string
	CategoryID string
	Price      decimal.Decimal
	Quantity   int
}

// PromoValidationInput is the request to validate a code against a cart.
type PromoValidationInput struct {
	Code       string
	CartTotal  decimal.Decimal
	CartItems  []CartItem
	CustomerID string
}

// CustomerPromoStats is the customer history needed by the per-customer gates.
type CustomerPromoStats struct {
	Redemptions    int
	HasPriorOrders bool
}

// PromoValidationResult is the outcome of validation. On failure Valid is
// false and Error/ErrorCode describe why.
type PromoValidationResult struct {
	Valid          bool
	PromoCode      *PromoCode
	DiscountAmount decimal.Decimal
	Error          string
	ErrorCode      PromoErrorCode
}

// PromoApplication is the cart after a validated promo is applied.
type PromoApplication struct {
	Discount     decimal.Decimal
	NewSubtotal  decimal.Decimal
	NewShipping  decimal.Decimal
	NewTotal     decimal.Decimal
	FreeShipping bool
}

// PromoRedemption records one consumed use of a promo code.
type PromoRedemption struct {
	Code           string
	OrderID        string
	CustomerID     string
	DiscountAmount decimal.Decimal
	RedeemedAt     time.Time
}

// RewardSKU is one free or discounted product granted by a deal.
type RewardSKU struct {
	SKU           string
	Quantity      int
	PriceOverride *float64
}

// GiftCardStatus is the lifecycle state of a gift card.
type GiftCardStatus string

const (
	GiftCardStatusActive GiftCardStatus = "active"
	GiftCardStatusVoid   GiftCardStatus = "void"
)

// GiftCard is a stored-value card.
type GiftCard struct {
	ID             string
	Code           string
	InitialBalance decimal.Decimal
	Balance        decimal.Decimal
	Currency       string
	Status         GiftCardStatus
	RecipientEmail string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GiftCardActor identifies who performed a gift card mutation.
type GiftCardActor struct {
	ID   string
	Name string
}

// GiftCardTransactionType classifies ledger entries.
type GiftCardTransactionType string

const (
	GiftCardTxAdjustment GiftCardTransactionType = "adjustment"
	GiftCardTxVoid       GiftCardTransactionType = "void"
	GiftCardTxReactivate GiftCardTransactionType = "reactivate"
)

// GiftCardTransaction is one ledger entry on a card.
type GiftCardTransaction struct {
	ID           string
	CardID       string
	Type         GiftCardTransactionType
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Note         string
	Actor        GiftCardActor
	CreatedAt    time.Time
}

// TaxAddress is a postal address in the tax oracle's canonical form.
type TaxAddress struct {
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

// TaxLineItem lets the oracle apply product specific rules.
type TaxLineItem struct {
	ID             string
	Quantity       int
	UnitPrice      decimal.Decimal
	Discount       decimal.Decimal
	ProductTaxCode string
}

// TaxRequest is a tax calculation for one order.
type TaxRequest struct {
	OrderID     string
	FromAddress *TaxAddress
	ToAddress   TaxAddress
	Amount      decimal.Decimal
	Shipping    decimal.Decimal
	LineItems   []TaxLineItem
}

// TaxResult is what checkout needs from the oracle.
type TaxResult struct {
	Rate            float64
	Amount          decimal.Decimal
	TaxableAmount   decimal.Decimal
	HasNexus        bool
	ShippingTaxable bool
}

// TaxCalculationLog is the persisted audit row of one oracle call.
type TaxCalculationLog struct {
	ID           string
	Request      string
	Response     string
	StatusCode   int
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

// ShipmentStatus is carrier agnostic.
type ShipmentStatus string

const (
	ShipmentStatusCreated   ShipmentStatus = "created"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
	ShipmentStatusException ShipmentStatus = "exception"
	ShipmentStatusVoided    ShipmentStatus = "voided"
)

// ShipmentAddress is stored as a JSON blob on the shipment row.
type ShipmentAddress struct {
	Name       string `json:"name,omitempty"`
	Company    string `json:"company,omitempty"`
	Street1    string `json:"street1,omitempty"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Shipment is one label or shipment created by any carrier integration.
type Shipment struct {
	ID                string
	OrderID           string
	Carrier           string
	CarrierShipmentID string
	TrackingNumber    string
	ServiceCode       string
	ServiceName       string
	Status            ShipmentStatus
	LabelURL          string
	LabelFormat       string
	ShipFrom          *ShipmentAddress
	ShipTo            *ShipmentAddress
	PackageCount      int
	TotalWeight       float64
	ShippingCost      decimal.Decimal
	Currency          string
	Metadata          map[string]any
	RawResponse       any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ShipmentUpdate carries the optional fields of a status update. Nil fields
// are left untouched.
type ShipmentUpdate struct {
	LabelURL    *string
	RawResponse any
	Metadata    map[string]any
}

// ShipmentFilter narrows a shipment history listing.
type ShipmentFilter struct {
	OrderID string
	Carrier string
	Status  ShipmentStatus
	From    *time.Time
	To      *time.Time
	Search  string
	Limit   int
	Offset  int
}

// ShipmentPage is one page of shipment history, newest first.
type ShipmentPage struct {
	Items  []Shipment
	Total  int
	Limit  int
	Offset int
}
