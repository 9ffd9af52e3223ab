package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories"
)

const (
	defaultShipmentPageSize = 50
	maxShipmentPageSize     = 200
	maxShipmentStatusLength = 40
	maxShipmentSearchLength = 100
)

// ShipmentHistoryServiceDeps bundles the collaborators of the shipment recorder.
type ShipmentHistoryServiceDeps struct {
	Shipments   repositories.ShipmentHistoryRepository
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type shipmentHistoryService struct {
	repo   repositories.ShipmentHistoryRepository
	clock  func() time.Time
	logger eventLogger
	newID  func() string
}

// NewShipmentHistoryService constructs a ShipmentHistoryService.
func NewShipmentHistoryService(deps ShipmentHistoryServiceDeps) (ShipmentHistoryService, error) {
	if deps.Shipments == nil {
		return nil, ErrShipmentRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &shipmentHistoryService{
		repo:   deps.Shipments,
		clock:  func() time.Time { return clock().UTC() },
		logger: deps.Logger,
		newID:  newID,
	}, nil
}

// Record stores a new shipment. Rows are immutable once written apart from
// UpdateStatus; recording an existing id fails.
func (s *shipmentHistoryService) Record(ctx context.Context, shipment Shipment) (Shipment, error) {
	shipment.OrderID = strings.TrimSpace(shipment.OrderID)
	shipment.Carrier = strings.ToLower(strings.TrimSpace(shipment.Carrier))
	if shipment.OrderID == "" {
		return Shipment{}, fmt.Errorf("%w: orderId is required", ErrShipmentInvalidInput)
	}
	if shipment.Carrier == "" {
		return Shipment{}, fmt.Errorf("%w: carrier is required", ErrShipmentInvalidInput)
	}
	if shipment.PackageCount < 0 || shipment.TotalWeight < 0 || shipment.ShippingCost.IsNegative() {
		return Shipment{}, fmt.Errorf("%w: counts and amounts must be >= 0", ErrShipmentInvalidInput)
	}

	shipment.ID = strings.TrimSpace(shipment.ID)
	if shipment.ID == "" {
		shipment.ID = s.newID()
	}
	if shipment.Status == "" {
		shipment.Status = domain.ShipmentStatusCreated
	} else {
		status, err := normalizeShipmentStatus(shipment.Status)
		if err != nil {
			return Shipment{}, err
		}
		shipment.Status = status
	}
	if shipment.Currency == "" {
		shipment.Currency = "USD"
	}
	shipment.Currency = strings.ToUpper(strings.TrimSpace(shipment.Currency))
	shipment.ShippingCost = domain.RoundMoney(shipment.ShippingCost)

	now := s.clock()
	if shipment.CreatedAt.IsZero() {
		shipment.CreatedAt = now
	}
	if shipment.UpdatedAt.IsZero() {
		shipment.UpdatedAt = shipment.CreatedAt
	}

	if err := s.repo.Insert(ctx, shipment); err != nil {
		if repositories.IsConflict(err) {
			return Shipment{}, ErrShipmentAlreadyRecorded
		}
		return Shipment{}, fmt.Errorf("%w: %v", ErrShipmentUnavailable, err)
	}

	s.logger.log(ctx, "shipment.recorded", map[string]any{
		"shipmentId":     shipment.ID,
		"orderId":        shipment.OrderID,
		"carrier":        shipment.Carrier,
		"trackingNumber": shipment.TrackingNumber,
	})
	return shipment, nil
}

// UpdateStatus sets the status and writes only the optional fields present
// in updates. Unknown ids yield (nil, nil).
func (s *shipmentHistoryService) UpdateStatus(ctx context.Context, id string, status domain.ShipmentStatus, updates *ShipmentUpdate) (*Shipment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrShipmentInvalidInput)
	}
	normalized, err := normalizeShipmentStatus(status)
	if err != nil {
		return nil, err
	}

	var fields ShipmentUpdate
	if updates != nil {
		fields = *updates
		if fields.LabelURL != nil {
			label := strings.TrimSpace(*fields.LabelURL)
			fields.LabelURL = &label
		}
	}
	updated, err := s.repo.UpdateStatus(ctx, id, normalized, fields, s.clock())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShipmentUnavailable, err)
	}
	if updated == nil {
		return nil, nil
	}

	s.logger.log(ctx, "shipment.status_updated", map[string]any{
		"shipmentId": updated.ID,
		"status":     string(updated.Status),
	})
	return updated, nil
}

func (s *shipmentHistoryService) List(ctx context.Context, filter ShipmentFilter) (ShipmentPage, error) {
	filter, err := normalizeShipmentFilter(filter)
	if err != nil {
		return ShipmentPage{}, err
	}
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return ShipmentPage{}, fmt.Errorf("%w: %v", ErrShipmentUnavailable, err)
	}
	page.Limit = filter.Limit
	page.Offset = filter.Offset
	if page.Items == nil {
		page.Items = []Shipment{}
	}
	return page, nil
}

func normalizeShipmentStatus(status domain.ShipmentStatus) (domain.ShipmentStatus, error) {
	value := strings.ToLower(strings.TrimSpace(string(status)))
	if value == "" {
		return "", fmt.Errorf("%w: status is required", ErrShipmentInvalidInput)
	}
	if len(value) > maxShipmentStatusLength {
		return "", fmt.Errorf("%w: status is too long", ErrShipmentInvalidInput)
	}
	return domain.ShipmentStatus(value), nil
}

func normalizeShipmentFilter(filter ShipmentFilter) (ShipmentFilter, error) {
	filter.OrderID = strings.TrimSpace(filter.OrderID)
	filter.Carrier = strings.ToLower(strings.TrimSpace(filter.Carrier))
	filter.Status = domain.ShipmentStatus(strings.ToLower(strings.TrimSpace(string(filter.Status))))
	filter.Search = strings.TrimSpace(filter.Search)
	if utf8.RuneCountInString(filter.Search) > maxShipmentSearchLength {
		filter.Search = string([]rune(filter.Search)[:maxShipmentSearchLength])
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return filter, fmt.Errorf("%w: from must not be after to", ErrShipmentInvalidInput)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultShipmentPageSize
	case filter.Limit > maxShipmentPageSize:
		filter.Limit = maxShipmentPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter, nil
}
