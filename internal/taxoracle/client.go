package taxoracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 64 * 1024
)

// ErrNotConfigured is returned when no base URL or API key is set. The tax
// service treats it like any other oracle failure and falls back to zero tax.
var ErrNotConfigured = errors.New("taxoracle: base url and api key are required")

// StatusError reports a non-2xx oracle response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("taxoracle: status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// Client calls a TaxJar compatible `/taxes` endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// New constructs a client. A non-positive timeout uses the default.
func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Calculate posts payload and decodes the tax block. Failed calls still return
// the status code and body so the caller can log the exchange.
func (c *Client) Calculate(ctx context.Context, payload services.TaxPayload) (services.TaxOracleResponse, error) {
	if c == nil || c.baseURL == "" || c.apiKey == "" {
		return services.TaxOracleResponse{}, ErrNotConfigured
	}

	endpoint, err := url.JoinPath(c.baseURL, "taxes")
	if err != nil {
		return services.TaxOracleResponse{}, fmt.Errorf("taxoracle: endpoint: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return services.TaxOracleResponse{}, fmt.Errorf("taxoracle: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return services.TaxOracleResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return services.TaxOracleResponse{}, fmt.Errorf("taxoracle: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	out := services.TaxOracleResponse{StatusCode: resp.StatusCode, Body: string(raw)}
	if err != nil {
		return out, fmt.Errorf("taxoracle: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{StatusCode: resp.StatusCode, Body: out.Body}
	}

	result, err := decodeResult(raw)
	if err != nil {
		return out, err
	}
	out.Result = result
	return out, nil
}

type taxBlock struct {
	Rate            *float64 `json:"rate"`
	AmountToCollect *float64 `json:"amount_to_collect"`
	TaxableAmount   *float64 `json:"taxable_amount"`
	HasNexus        *bool    `json:"has_nexus"`
	FreightTaxable  *bool    `json:"freight_taxable"`
	ShippingTaxable *bool    `json:"shipping_taxable"`
}

type taxEnvelope struct {
	Tax *taxBlock `json:"tax"`
	taxBlock
}

// decodeResult accepts the tax fields either under "tax" or at the top level.
func decodeResult(raw []byte) (domain.TaxResult, error) {
	var env taxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.TaxResult{}, fmt.Errorf("taxoracle: decode response: %w", err)
	}
	block := env.taxBlock
	if env.Tax != nil {
		block = *env.Tax
	}
	if block.Rate == nil && block.AmountToCollect == nil {
		return domain.TaxResult{}, errors.New("taxoracle: response has no tax block")
	}

	result := domain.TaxResult{
		Rate:            floatValue(block.Rate),
		Amount:          domain.RoundMoney(decimal.NewFromFloat(floatValue(block.AmountToCollect))),
		TaxableAmount:   domain.RoundMoney(decimal.NewFromFloat(floatValue(block.TaxableAmount))),
		HasNexus:        boolValue(block.HasNexus),
		ShippingTaxable: boolValue(block.FreightTaxable) || boolValue(block.ShippingTaxable),
	}
	return result, nil
}

func floatValue(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func boolValue(v *bool) bool {
	return v != nil && *v
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
