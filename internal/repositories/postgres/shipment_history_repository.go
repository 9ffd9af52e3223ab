package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
)

const shipmentColumns = `id, order_id, carrier,
	COALESCE(carrier_shipment_id, ''), COALESCE(tracking_number, ''),
	COALESCE(service_code, ''), COALESCE(service_name, ''), status,
	COALESCE(label_url, ''), COALESCE(label_format, ''),
	COALESCE(ship_from, ''), COALESCE(ship_to, ''),
	COALESCE(package_count, 0), COALESCE(total_weight, 0), COALESCE(shipping_cost, 0),
	COALESCE(currency, ''), COALESCE(metadata, ''), COALESCE(raw_response, ''),
	created_at, updated_at`

const insertShipmentSQL = `INSERT INTO shipment_history (
	id, order_id, carrier, carrier_shipment_id, tracking_number, service_code,
	service_name, status, label_url, label_format, ship_from, ship_to,
	package_count, total_weight, shipping_cost, currency, metadata, raw_response,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

// ShipmentHistoryRepository implements repositories.ShipmentHistoryRepository.
// Addresses, metadata and raw carrier responses are stored as JSON text.
type ShipmentHistoryRepository struct {
	db DB
}

// NewShipmentHistoryRepository constructs a Postgres-backed shipment history repository.
func NewShipmentHistoryRepository(db DB) (*ShipmentHistoryRepository, error) {
	if db == nil {
		return nil, errors.New("shipment history repository requires a database")
	}
	return &ShipmentHistoryRepository{db: db}, nil
}

func (r *ShipmentHistoryRepository) Insert(ctx context.Context, s domain.Shipment) error {
	shipFrom, err := encodeJSON(s.ShipFrom)
	if err != nil {
		return fmt.Errorf("shipment_history.insert: ship_from: %w", err)
	}
	shipTo, err := encodeJSON(s.ShipTo)
	if err != nil {
		return fmt.Errorf("shipment_history.insert: ship_to: %w", err)
	}
	metadata, err := encodeJSON(s.Metadata)
	if err != nil {
		return fmt.Errorf("shipment_history.insert: metadata: %w", err)
	}
	raw, err := encodeJSON(s.RawResponse)
	if err != nil {
		return fmt.Errorf("shipment_history.insert: raw_response: %w", err)
	}

	_, err = r.db.Exec(ctx, insertShipmentSQL,
		s.ID, s.OrderID, s.Carrier,
		nullString(s.CarrierShipmentID), nullString(s.TrackingNumber),
		nullString(s.ServiceCode), nullString(s.ServiceName), string(s.Status),
		nullString(s.LabelURL), nullString(s.LabelFormat),
		shipFrom, shipTo,
		s.PackageCount, s.TotalWeight, s.ShippingCost.InexactFloat64(),
		nullString(s.Currency), metadata, raw,
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	return wrapError("shipment_history.insert", err)
}

// UpdateStatus writes status, updated_at and only the supplied optional
// columns in a single statement.
func (r *ShipmentHistoryRepository) UpdateStatus(ctx context.Context, id string, status domain.ShipmentStatus, updates domain.ShipmentUpdate, updatedAt time.Time) (*domain.Shipment, error) {
	query, args, err := shipmentUpdate(id, status, updates, updatedAt)
	if err != nil {
		return nil, err
	}
	shipment, err := scanShipment(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("shipment_history.update", err)
	}
	return &shipment, nil
}

func shipmentUpdate(id string, status domain.ShipmentStatus, updates domain.ShipmentUpdate, updatedAt time.Time) (string, []any, error) {
	args := []any{id, string(status), updatedAt.UTC()}
	sets := []string{"status = $2", "updated_at = $3"}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if updates.LabelURL != nil {
		set("label_url", nullString(*updates.LabelURL))
	}
	if updates.Metadata != nil {
		metadata, err := encodeJSON(updates.Metadata)
		if err != nil {
			return "", nil, fmt.Errorf("shipment_history.update: metadata: %w", err)
		}
		set("metadata", metadata)
	}
	if updates.RawResponse != nil {
		raw, err := encodeJSON(updates.RawResponse)
		if err != nil {
			return "", nil, fmt.Errorf("shipment_history.update: raw_response: %w", err)
		}
		set("raw_response", raw)
	}

	query := `UPDATE shipment_history SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + shipmentColumns
	return query, args, nil
}

func (r *ShipmentHistoryRepository) List(ctx context.Context, filter domain.ShipmentFilter) (domain.ShipmentPage, error) {
	where, args := shipmentWhere(filter)
	query := `SELECT ` + shipmentColumns + `, count(*) OVER() FROM shipment_history` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := r.db.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return domain.ShipmentPage{}, wrapError("shipment_history.list", err)
	}
	defer rows.Close()

	page := domain.ShipmentPage{Items: []domain.Shipment{}, Limit: filter.Limit, Offset: filter.Offset}
	for rows.Next() {
		var total int
		shipment, err := scanShipment(rows, &total)
		if err != nil {
			return domain.ShipmentPage{}, wrapError("shipment_history.scan", err)
		}
		page.Items = append(page.Items, shipment)
		page.Total = total
	}
	if err := rows.Err(); err != nil {
		return domain.ShipmentPage{}, wrapError("shipment_history.list", err)
	}

	// an offset past the end returns no rows and so no window count
	if len(page.Items) == 0 && filter.Offset > 0 {
		if err := r.db.QueryRow(ctx, `SELECT count(*) FROM shipment_history`+where, args...).Scan(&page.Total); err != nil {
			return domain.ShipmentPage{}, wrapError("shipment_history.count", err)
		}
	}
	return page, nil
}

func shipmentWhere(filter domain.ShipmentFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.OrderID != "" {
		add("order_id = $%d", filter.OrderID)
	}
	if filter.Carrier != "" {
		add("carrier = $%d", filter.Carrier)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("created_at >= $%d", filter.From.UTC())
	}
	if filter.To != nil {
		add("created_at <= $%d", filter.To.UTC())
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(tracking_number ILIKE $%[1]d OR service_name ILIKE $%[1]d OR order_id ILIKE $%[1]d OR carrier_shipment_id ILIKE $%[1]d)", n))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanShipment(row pgx.Row, extra ...any) (domain.Shipment, error) {
	var (
		s                               domain.Shipment
		status                          string
		shipFrom, shipTo, meta, rawText string
		cost                            float64
		createdAt, updatedAt            time.Time
	)
	dest := []any{
		&s.ID, &s.OrderID, &s.Carrier,
		&s.CarrierShipmentID, &s.TrackingNumber,
		&s.ServiceCode, &s.ServiceName, &status,
		&s.LabelURL, &s.LabelFormat,
		&shipFrom, &shipTo,
		&s.PackageCount, &s.TotalWeight, &cost,
		&s.Currency, &meta, &rawText,
		&createdAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.Shipment{}, err
	}
	s.Status = domain.ShipmentStatus(status)
	s.ShippingCost = domain.RoundMoney(decimal.NewFromFloat(cost))
	s.ShipFrom = decodeAddress(shipFrom)
	s.ShipTo = decodeAddress(shipTo)
	s.Metadata = decodeMetadata(meta)
	s.RawResponse = decodeRaw(rawText)
	s.CreatedAt = createdAt.UTC()
	s.UpdatedAt = updatedAt.UTC()
	return s, nil
}

// Stored blobs that fail to decode come back as nil for that field only.

func decodeAddress(text string) *domain.ShipmentAddress {
	if text == "" {
		return nil
	}
	var addr domain.ShipmentAddress
	if err := json.Unmarshal([]byte(text), &addr); err != nil {
		return nil
	}
	return &addr
}

func decodeMetadata(text string) map[string]any {
	var out map[string]any
	if !decodeJSON(text, &out) {
		return nil
	}
	return out
}

func decodeRaw(text string) any {
	var out any
	if !decodeJSON(text, &out) {
		return nil
	}
	return out
}

// decodeJSON keeps numbers as json.Number so blobs re-encode without losing
// integer precision.
func decodeJSON(text string, dst any) bool {
	if text == "" {
		return false
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return false
	}
	return !dec.More()
}

func encodeJSON(v any) (*string, error) {
	if isNilValue(v) {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	text := string(data)
	if text == "null" {
		return nil, nil
	}
	return &text, nil
}

func isNilValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *domain.ShipmentAddress:
		return t == nil
	case map[string]any:
		return t == nil
	}
	return false
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
