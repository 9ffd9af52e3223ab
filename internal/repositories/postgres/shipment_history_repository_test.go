package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories"
)

func TestShipmentWhere(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args := shipmentWhere(domain.ShipmentFilter{
		OrderID: "order-1",
		Carrier: "ups",
		Status:  domain.ShipmentStatusDelivered,
		From:    &from,
		Search:  "1Z_9%",
	})

	assert.Equal(t,
		" WHERE order_id = $1 AND carrier = $2 AND status = $3 AND created_at >= $4 AND "+
			"(tracking_number ILIKE $5 OR service_name ILIKE $5 OR order_id ILIKE $5 OR carrier_shipment_id ILIKE $5)",
		where)
	require.Len(t, args, 5)
	assert.Equal(t, `%1Z\_9\%%`, args[4])
}

func TestShipmentWhere_Empty(t *testing.T) {
	where, args := shipmentWhere(domain.ShipmentFilter{Limit: 50})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestDecodeHelpers_CorruptBlobsYieldNil(t *testing.T) {
	assert.Nil(t, decodeAddress("{not json"))
	assert.Nil(t, decodeMetadata(`["array"]`))
	assert.Nil(t, decodeRaw("{"))

	addr := decodeAddress(`{"city":"Columbia","state":"SC"}`)
	require.NotNil(t, addr)
	assert.Equal(t, "Columbia", addr.City)
	assert.Equal(t, map[string]any{"batch": "A"}, decodeMetadata(`{"batch":"A"}`))
}

func TestShipmentUpdate_WritesOnlySuppliedColumns(t *testing.T) {
	at := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	label := "https://labels.example/a.pdf"

	query, args, err := shipmentUpdate("ship-a", domain.ShipmentStatusInTransit, domain.ShipmentUpdate{LabelURL: &label}, at)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query,
		"UPDATE shipment_history SET status = $2, updated_at = $3, label_url = $4 WHERE id = $1 RETURNING "), query)
	assert.NotContains(t, query, "metadata =")
	assert.NotContains(t, query, "raw_response =")
	require.Len(t, args, 4)
	assert.Equal(t, "ship-a", args[0])
	assert.Equal(t, "in_transit", args[1])
	assert.Equal(t, &label, args[3])

	query, args, err = shipmentUpdate("ship-a", domain.ShipmentStatusDelivered, domain.ShipmentUpdate{
		Metadata:    map[string]any{"k": "v"},
		RawResponse: map[string]any{"ok": true},
	}, at)
	require.NoError(t, err)
	assert.Contains(t, query, "SET status = $2, updated_at = $3, metadata = $4, raw_response = $5 WHERE")
	require.Len(t, args, 5)
	assert.JSONEq(t, `{"k":"v"}`, *args[3].(*string))
	assert.JSONEq(t, `{"ok":true}`, *args[4].(*string))

	query, args, err = shipmentUpdate("ship-a", domain.ShipmentStatusDelivered, domain.ShipmentUpdate{}, at)
	require.NoError(t, err)
	assert.Contains(t, query, "SET status = $2, updated_at = $3 WHERE")
	assert.Len(t, args, 3)
}

func TestDecodeHelpers_PreserveLargeIntegers(t *testing.T) {
	stored := `{"carrierRef":12345678901234567891,"weight":1.25}`

	encoded, err := encodeJSON(decodeMetadata(stored))
	require.NoError(t, err)
	require.NotNil(t, encoded)
	assert.Equal(t, stored, *encoded)

	encoded, err = encodeJSON(decodeRaw(`[12345678901234567891]`))
	require.NoError(t, err)
	require.NotNil(t, encoded)
	assert.Equal(t, `[12345678901234567891]`, *encoded)

	assert.Nil(t, decodeRaw(`{"a":1} trailing`))
}

func TestEncodeJSON_NilValues(t *testing.T) {
	var addr *domain.ShipmentAddress
	var meta map[string]any

	for _, v := range []any{nil, addr, meta} {
		encoded, err := encodeJSON(v)
		require.NoError(t, err)
		assert.Nil(t, encoded)
	}

	encoded, err := encodeJSON(map[string]any{"k": 1})
	require.NoError(t, err)
	require.NotNil(t, encoded)
	assert.JSONEq(t, `{"k":1}`, *encoded)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, wrapError("op", nil))
	assert.True(t, repositories.IsNotFound(wrapError("op", pgx.ErrNoRows)))
	assert.True(t, repositories.IsConflict(wrapError("op", &pgconn.PgError{Code: "23505"})))
	assert.True(t, repositories.IsUnavailable(wrapError("op", &pgconn.PgError{Code: "57P01"})))
	assert.False(t, repositories.IsConflict(wrapError("op", &pgconn.PgError{Code: "23502"})))

	wrapped := wrapError("op", fmt.Errorf("exec: %w", pgx.ErrNoRows))
	assert.True(t, errors.Is(wrapped, pgx.ErrNoRows))
}
