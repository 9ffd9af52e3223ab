package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories"
)

const (
	taxMeterName       = "github.com/scootsmagoo/filtersfast-next-sub010/internal/services/tax"
	taxLogWriteTimeout = 5 * time.Second
	maxTaxLineItems    = 500
)

// TaxPayload is the request body sent to the tax oracle. It is also what the
// calculation log stores as the request.
type TaxPayload struct {
	FromStreet  string           `json:"from_street,omitempty"`
	FromCity    string           `json:"from_city,omitempty"`
	FromState   string           `json:"from_state,omitempty"`
	FromZip     string           `json:"from_zip,omitempty"`
	FromCountry string           `json:"from_country,omitempty"`
	ToStreet    string           `json:"to_street,omitempty"`
	ToCity      string           `json:"to_city,omitempty"`
	ToState     string           `json:"to_state"`
	ToZip       string           `json:"to_zip"`
	ToCountry   string           `json:"to_country"`
	Amount      float64          `json:"amount"`
	Shipping    float64          `json:"shipping"`
	LineItems   []TaxPayloadItem `json:"line_items,omitempty"`
}

// TaxPayloadItem is one line item of a TaxPayload.
type TaxPayloadItem struct {
	ID             string  `json:"id,omitempty"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	Discount       float64 `json:"discount,omitempty"`
	ProductTaxCode string  `json:"product_tax_code,omitempty"`
}

// TaxServiceDeps bundles the collaborators of the tax service.
type TaxServiceDeps struct {
	Oracle      TaxOracle
	Logs        repositories.TaxLogRepository
	Ledger      LedgerPublisher
	Meter       metric.Meter
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type taxService struct {
	oracle    TaxOracle
	logs      repositories.TaxLogRepository
	ledger    LedgerPublisher
	fallbacks metric.Int64Counter
	clock     func() time.Time
	logger    eventLogger
	newID     func() string
}

// NewTaxService constructs a TaxService.
func NewTaxService(deps TaxServiceDeps) (TaxService, error) {
	if deps.Oracle == nil || deps.Logs == nil {
		return nil, ErrTaxDependencyMissing
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter(taxMeterName)
	}
	fallbacks, err := meter.Int64Counter("tax.oracle.fallbacks",
		metric.WithDescription("Tax calculations answered with the zero-tax fallback"),
	)
	if err != nil {
		return nil, fmt.Errorf("tax service: create fallback counter: %w", err)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &taxService{
		oracle:    deps.Oracle,
		logs:      deps.Logs,
		ledger:    deps.Ledger,
		fallbacks: fallbacks,
		clock:     func() time.Time { return clock().UTC() },
		logger:    deps.Logger,
		newID:     newID,
	}, nil
}

// Calculate returns the oracle's answer. When the oracle fails it returns
// the zero-tax fallback together with an error wrapping
// ErrTaxOracleUnavailable so checkout can continue.
func (s *taxService) Calculate(ctx context.Context, cmd CalculateTaxCommand) (TaxResult, error) {
	req, err := BuildTaxRequest(cmd)
	if err != nil {
		return TaxResult{}, err
	}
	payload := NewTaxPayload(req)
	requestJSON, err := json.Marshal(payload)
	if err != nil {
		return TaxResult{}, fmt.Errorf("tax service: encode request: %w", err)
	}

	resp, callErr := s.oracle.Calculate(ctx, payload)
	entry := domain.TaxCalculationLog{
		ID:         s.newID(),
		Request:    string(requestJSON),
		Response:   resp.Body,
		StatusCode: resp.StatusCode,
		Success:    callErr == nil,
		CreatedAt:  s.clock(),
	}

	if callErr != nil {
		entry.ErrorMessage = callErr.Error()
		s.persist(ctx, entry)
		s.fallback(ctx, req, entry)
		return fallbackTaxResult(), fmt.Errorf("%w: %v", ErrTaxOracleUnavailable, callErr)
	}

	s.persist(ctx, entry)
	result := resp.Result
	result.Amount = domain.RoundMoney(result.Amount)
	result.TaxableAmount = domain.RoundMoney(result.TaxableAmount)
	s.logger.log(ctx, "tax.calculated", map[string]any{
		"orderId": req.OrderID,
		"state":   req.ToAddress.State,
		"rate":    result.Rate,
		"amount":  result.Amount.StringFixed(2),
	})
	return result, nil
}

func (s *taxService) persist(ctx context.Context, entry domain.TaxCalculationLog) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), taxLogWriteTimeout)
	defer cancel()
	if err := s.logs.Insert(writeCtx, entry); err != nil {
		s.logger.log(ctx, "tax.log_write_failed", map[string]any{"logId": entry.ID, "error": err.Error()})
	}
}

func (s *taxService) fallback(ctx context.Context, req domain.TaxRequest, entry domain.TaxCalculationLog) {
	s.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("status_code", entry.StatusCode),
		attribute.String("to_state", req.ToAddress.State),
	))
	s.logger.log(ctx, "tax.oracle_failed", map[string]any{
		"orderId":    req.OrderID,
		"logId":      entry.ID,
		"statusCode": entry.StatusCode,
		"error":      entry.ErrorMessage,
	})
	if s.ledger == nil {
		return
	}
	event := LedgerEvent{
		EventID:    entry.ID,
		Type:       LedgerEventTaxFallback,
		SubjectID:  req.OrderID,
		Amount:     req.Amount.StringFixed(2),
		OccurredAt: entry.CreatedAt,
		Details: map[string]any{
			"statusCode": entry.StatusCode,
			"toState":    req.ToAddress.State,
			"toZip":      req.ToAddress.Zip,
		},
	}
	if _, err := s.ledger.PublishLedgerEvent(ctx, event); err != nil {
		s.logger.log(ctx, "ledger.publish_failed", map[string]any{"type": event.Type, "error": err.Error()})
	}
}

func fallbackTaxResult() TaxResult {
	return TaxResult{}
}

// BuildTaxRequest validates cmd and normalises its addresses.
func BuildTaxRequest(cmd CalculateTaxCommand) (domain.TaxRequest, error) {
	if cmd.Amount.IsNegative() {
		return domain.TaxRequest{}, fmt.Errorf("%w: amount must be >= 0", ErrTaxInvalidInput)
	}
	if cmd.Shipping.IsNegative() {
		return domain.TaxRequest{}, fmt.Errorf("%w: shipping must be >= 0", ErrTaxInvalidInput)
	}
	if len(cmd.LineItems) > maxTaxLineItems {
		return domain.TaxRequest{}, fmt.Errorf("%w: too many line items", ErrTaxInvalidInput)
	}

	to, err := NormalizeTaxAddress(cmd.ToAddress)
	if err != nil {
		return domain.TaxRequest{}, err
	}
	req := domain.TaxRequest{
		OrderID:   sanitizeAddressField(cmd.OrderID, 100),
		ToAddress: to,
		Amount:    domain.RoundMoney(cmd.Amount),
		Shipping:  domain.RoundMoney(cmd.Shipping),
	}
	if cmd.FromAddress != nil {
		from, err := NormalizeTaxAddress(*cmd.FromAddress)
		if err != nil {
			return domain.TaxRequest{}, fmt.Errorf("from address: %w", err)
		}
		req.FromAddress = &from
	}

	for i, item := range cmd.LineItems {
		if item.Quantity < 1 {
			return domain.TaxRequest{}, fmt.Errorf("%w: lineItems[%d].quantity must be >= 1", ErrTaxInvalidInput, i)
		}
		if item.UnitPrice.IsNegative() || item.Discount.IsNegative() {
			return domain.TaxRequest{}, fmt.Errorf("%w: lineItems[%d] amounts must be >= 0", ErrTaxInvalidInput, i)
		}
		req.LineItems = append(req.LineItems, domain.TaxLineItem{
			ID:             sanitizeAddressField(item.ID, 100),
			Quantity:       item.Quantity,
			UnitPrice:      domain.RoundMoney(item.UnitPrice),
			Discount:       domain.RoundMoney(item.Discount),
			ProductTaxCode: strings.ToUpper(sanitizeAddressField(item.ProductTaxCode, 20)),
		})
	}
	return req, nil
}

// NewTaxPayload converts a normalised request into the oracle wire body.
func NewTaxPayload(req domain.TaxRequest) TaxPayload {
	payload := TaxPayload{
		ToStreet:  req.ToAddress.Street,
		ToCity:    req.ToAddress.City,
		ToState:   req.ToAddress.State,
		ToZip:     req.ToAddress.Zip,
		ToCountry: req.ToAddress.Country,
		Amount:    req.Amount.InexactFloat64(),
		Shipping:  req.Shipping.InexactFloat64(),
	}
	if from := req.FromAddress; from != nil {
		payload.FromStreet = from.Street
		payload.FromCity = from.City
		payload.FromState = from.State
		payload.FromZip = from.Zip
		payload.FromCountry = from.Country
	}
	for _, item := range req.LineItems {
		payload.LineItems = append(payload.LineItems, TaxPayloadItem{
			ID:             item.ID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice.InexactFloat64(),
			Discount:       item.Discount.InexactFloat64(),
			ProductTaxCode: item.ProductTaxCode,
		})
	}
	return payload
}
